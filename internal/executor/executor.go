// Package executor wraps the opaque automation engine with typed
// operations. Every operation narrates itself over the broadcaster:
// an intent event before the engine call, a screenshot and a completion
// event after; failures are logged at error level and returned, never
// swallowed and never retried here (blind retry of a browser action can
// double-submit a form).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/formpilot/formpilot/internal/broadcast"
	"github.com/formpilot/formpilot/internal/engine"
	"github.com/formpilot/formpilot/pkg/models"
)

// Config carries the executor's timing knobs.
type Config struct {
	// NavigationTimeout bounds a navigate call. Document-class sites can
	// be slow; default is 90s.
	NavigationTimeout time.Duration
	// SettleDelay is the fixed pause after navigation so late-rendering
	// UI appears before the first screenshot.
	SettleDelay time.Duration
	// ClickSettle is the pause after a click for any triggered
	// navigation.
	ClickSettle time.Duration
	// SubmitSettle is the longer pause after the primary call-to-action.
	SubmitSettle time.Duration
}

func (c *Config) withDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 90 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.ClickSettle <= 0 {
		c.ClickSettle = time.Second
	}
	if c.SubmitSettle <= 0 {
		c.SubmitSettle = 5 * time.Second
	}
}

// Executor issues typed operations against a session's engine.
type Executor struct {
	events *broadcast.Broadcaster
	cfg    Config
}

func New(events *broadcast.Broadcaster, cfg Config) *Executor {
	cfg.withDefaults()
	return &Executor{events: events, cfg: cfg}
}

// Navigate goes to url and waits for the page to settle. Returns the
// landed URL and a screenshot.
func (x *Executor) Navigate(ctx context.Context, sessionID string, eng engine.Engine, url string) (string, string, error) {
	x.events.Log(sessionID, "info", fmt.Sprintf("Navigating to %s", url))
	x.events.Status(sessionID, "navigate", "Opening registration page...")

	navCtx, cancel := context.WithTimeout(ctx, x.cfg.NavigationTimeout)
	defer cancel()

	instruction := fmt.Sprintf("go to %s and wait for the page to finish loading", url)
	if err := eng.Perform(navCtx, instruction); err != nil {
		return "", "", x.fail(sessionID, "navigate", err)
	}
	x.settle(ctx, x.cfg.SettleDelay)

	pageURL, err := eng.PageURL(ctx)
	if err != nil {
		pageURL = url
	}
	shot := x.captureAndEmit(ctx, sessionID, eng, "navigate")
	x.events.Log(sessionID, "success", fmt.Sprintf("Page loaded: %s", pageURL))
	return pageURL, shot, nil
}

// FillFields fills fields strictly in order; later fields may depend on
// state produced by earlier ones. One field's failure is recorded and
// the rest still run.
func (x *Executor) FillFields(ctx context.Context, sessionID string, eng engine.Engine, fields []models.FormField) ([]models.FieldResult, string, error) {
	x.events.Log(sessionID, "info", fmt.Sprintf("Filling %d form fields...", len(fields)))
	x.events.Status(sessionID, "fill_form", "Filling form...")

	results := make([]models.FieldResult, 0, len(fields))
	filled := 0
	for _, f := range fields {
		instruction := fieldInstruction(f)
		if err := eng.Perform(ctx, instruction); err != nil {
			x.events.Log(sessionID, "error", fmt.Sprintf("Field %q failed: %v", f.Key, err))
			results = append(results, models.FieldResult{Key: f.Key, Error: err.Error()})
			continue
		}
		filled++
		x.events.Log(sessionID, "info", fmt.Sprintf("Filled %s", resolveLabel(f)))
		results = append(results, models.FieldResult{Key: f.Key, Success: true})
	}

	shot := x.captureAndEmit(ctx, sessionID, eng, "fill_form")
	x.events.Log(sessionID, "success", fmt.Sprintf("Filled %d of %d fields", filled, len(fields)))
	return results, shot, nil
}

// ClickTarget clicks a named button, link or checkbox and waits briefly
// for any triggered navigation.
func (x *Executor) ClickTarget(ctx context.Context, sessionID string, eng engine.Engine, target, kind string) (string, string, error) {
	if kind == "" {
		kind = "button"
	}
	x.events.Log(sessionID, "info", fmt.Sprintf("Clicking %s %q", kind, target))
	x.events.Status(sessionID, "click", fmt.Sprintf("Clicking %s...", target))

	if err := eng.Perform(ctx, clickInstruction(target, kind)); err != nil {
		return "", "", x.fail(sessionID, "click", err)
	}
	x.settle(ctx, x.cfg.ClickSettle)

	pageURL, _ := eng.PageURL(ctx)
	shot := x.captureAndEmit(ctx, sessionID, eng, "click")
	x.events.Log(sessionID, "success", fmt.Sprintf("Clicked %s", target))
	return shot, pageURL, nil
}

// Submit clicks the primary call-to-action, then waits out the page
// transition submission usually triggers.
func (x *Executor) Submit(ctx context.Context, sessionID string, eng engine.Engine) (string, string, error) {
	x.events.Log(sessionID, "info", "Submitting form...")
	x.events.Status(sessionID, "submit", "Submitting...")

	if err := eng.Perform(ctx, submitInstruction); err != nil {
		return "", "", x.fail(sessionID, "submit", err)
	}
	x.settle(ctx, x.cfg.SubmitSettle)

	pageURL, _ := eng.PageURL(ctx)
	shot := x.captureAndEmit(ctx, sessionID, eng, "submit")
	x.events.Log(sessionID, "success", "Form submitted")
	return shot, pageURL, nil
}

// EnterVerificationCode types an OTP or captcha solution.
func (x *Executor) EnterVerificationCode(ctx context.Context, sessionID string, eng engine.Engine, kind, value string) (string, error) {
	x.events.Log(sessionID, "info", fmt.Sprintf("Entering %s...", kind))
	x.events.Status(sessionID, "enter_input", "Entering verification code...")

	if err := eng.Perform(ctx, verificationInstruction(kind, value)); err != nil {
		return "", x.fail(sessionID, "enter_verification_code", err)
	}

	shot := x.captureAndEmit(ctx, sessionID, eng, "enter_input")
	x.events.Log(sessionID, "success", "Verification code entered")
	return shot, nil
}

// AnalyzePage runs the read-only structured query that drives the
// orchestrator's next-step decisions.
func (x *Executor) AnalyzePage(ctx context.Context, sessionID string, eng engine.Engine) (*models.PageAnalysis, string, error) {
	x.events.Log(sessionID, "info", "Analyzing page...")
	x.events.Status(sessionID, "analyze", "Analyzing page content...")

	raw, err := eng.Query(ctx, analyzeInstruction)
	if err != nil {
		return nil, "", x.fail(sessionID, "analyze", err)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return nil, "", x.fail(sessionID, "analyze", err)
	}

	shot := x.captureAndEmit(ctx, sessionID, eng, "analyze")
	x.events.Log(sessionID, "info", fmt.Sprintf("Page type: %s", analysis.PageType))
	return analysis, shot, nil
}

// Screenshot captures the current page on demand, independent of any
// other operation.
func (x *Executor) Screenshot(ctx context.Context, sessionID string, eng engine.Engine) (string, error) {
	shot, err := eng.Screenshot(ctx)
	if err != nil {
		return "", x.fail(sessionID, "screenshot", err)
	}
	x.events.Screenshot(sessionID, shot, "capture")
	return shot, nil
}

// Execute is the planner's raw escape hatch: act performs an
// instruction, observe/extract run it as a structured query.
func (x *Executor) Execute(ctx context.Context, sessionID string, eng engine.Engine, action, prompt string) (interface{}, string, error) {
	x.events.Log(sessionID, "info", fmt.Sprintf("Executing raw %s instruction", action))

	var result interface{}
	switch action {
	case models.ActionAct:
		if err := eng.Perform(ctx, prompt); err != nil {
			return nil, "", x.fail(sessionID, "execute", err)
		}
		result = true
	default:
		raw, err := eng.Query(ctx, prompt)
		if err != nil {
			return nil, "", x.fail(sessionID, "execute", err)
		}
		result = raw
	}

	shot := x.captureAndEmit(ctx, sessionID, eng, "execute")
	x.events.Log(sessionID, "success", "Instruction executed")
	return result, shot, nil
}

// fail narrates the failure before handing it back to the caller.
func (x *Executor) fail(sessionID, op string, err error) error {
	x.events.Log(sessionID, "error", fmt.Sprintf("%s failed: %v", op, err))
	return &models.ActionError{Op: op, Cause: err}
}

// captureAndEmit broadcasts a post-operation screenshot. A failed
// capture does not fail an operation that already succeeded.
func (x *Executor) captureAndEmit(ctx context.Context, sessionID string, eng engine.Engine, step string) string {
	shot, err := eng.Screenshot(ctx)
	if err != nil {
		log.Printf("warning: screenshot after %s failed for session %s: %v", step, sessionID, err)
		return ""
	}
	x.events.Screenshot(sessionID, shot, step)
	return shot
}

func (x *Executor) settle(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func parseAnalysis(raw map[string]interface{}) (*models.PageAnalysis, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode analysis: %w", err)
	}
	var analysis models.PageAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("malformed analysis from engine: %w", err)
	}
	analysis.PageType = strings.ToLower(analysis.PageType)
	if analysis.PageType == "" {
		analysis.PageType = models.PageUnknown
	}
	return &analysis, nil
}
