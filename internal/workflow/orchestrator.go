// Package workflow sequences the registration pipeline for one session
// and implements the suspend/resume protocol for human-in-the-loop
// verification. The external planner drives it one step at a time; the
// broadcaster narrates progress independently of the request cycle.
package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/formpilot/formpilot/internal/broadcast"
	"github.com/formpilot/formpilot/internal/executor"
	"github.com/formpilot/formpilot/internal/session"
	"github.com/formpilot/formpilot/pkg/models"
)

// Orchestrator owns no state of its own; sessions carry theirs.
type Orchestrator struct {
	registry *session.Registry
	exec     *executor.Executor
	events   *broadcast.Broadcaster
}

func New(registry *session.Registry, exec *executor.Executor, events *broadcast.Broadcaster) *Orchestrator {
	return &Orchestrator{registry: registry, exec: exec, events: events}
}

// Init creates (or re-creates) a session and navigates to the
// registration page. A reused id tears the prior session down first.
func (o *Orchestrator) Init(ctx context.Context, req models.InitRequest) (*models.InitResponse, error) {
	s, err := o.registry.Create(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.TryBegin(); err != nil {
		return nil, err
	}
	defer s.End()

	pageURL, shot, err := o.exec.Navigate(ctx, s.ID, s.Engine, req.URL)
	if err != nil {
		s.SetState(models.StateFailed)
		o.events.Result(s.ID, false, fmt.Sprintf("Could not open registration page: %v", err))
		return nil, err
	}

	s.SetState(models.StateRunning)
	s.SetPageURL(pageURL)
	return &models.InitResponse{
		Success:    true,
		SessionID:  s.ID,
		Screenshot: shot,
		PageURL:    pageURL,
	}, nil
}

// FillForm fills fields sequentially and reports per-field outcomes.
func (o *Orchestrator) FillForm(ctx context.Context, req models.FillFormRequest) (*models.FillFormResponse, error) {
	s, done, err := o.begin(req.SessionID, "fill-form")
	if err != nil {
		return nil, err
	}
	defer done()

	results, shot, err := o.exec.FillFields(ctx, s.ID, s.Engine, req.Fields)
	if err != nil {
		return nil, err
	}
	return &models.FillFormResponse{Success: true, Results: results, Screenshot: shot}, nil
}

// Click clicks a named target.
func (o *Orchestrator) Click(ctx context.Context, req models.ClickRequest) (*models.ClickResponse, error) {
	s, done, err := o.begin(req.SessionID, "click")
	if err != nil {
		return nil, err
	}
	defer done()

	shot, pageURL, err := o.exec.ClickTarget(ctx, s.ID, s.Engine, req.Target, req.Type)
	if err != nil {
		return nil, err
	}
	if pageURL != "" {
		s.SetPageURL(pageURL)
	}
	return &models.ClickResponse{Success: true, Screenshot: shot, PageURL: pageURL}, nil
}

// Submit clicks the primary call-to-action and classifies the landing
// page to drive the terminal transition.
func (o *Orchestrator) Submit(ctx context.Context, req models.SessionRequest) (*models.SubmitResponse, error) {
	s, done, err := o.begin(req.SessionID, "submit")
	if err != nil {
		return nil, err
	}
	defer done()

	shot, pageURL, err := o.exec.Submit(ctx, s.ID, s.Engine)
	if err != nil {
		return nil, err
	}
	if pageURL != "" {
		s.SetPageURL(pageURL)
	}
	o.classifyOutcome(ctx, s)
	return &models.SubmitResponse{Success: true, Screenshot: shot, PageURL: pageURL}, nil
}

// classifyOutcome checks where submission landed. Only an unambiguous
// success or error page ends the run; anything else keeps it going.
func (o *Orchestrator) classifyOutcome(ctx context.Context, s *session.Session) {
	analysis, _, err := o.exec.AnalyzePage(ctx, s.ID, s.Engine)
	if err != nil {
		log.Printf("session %s: post-submit classification failed: %v", s.ID, err)
		return
	}
	switch analysis.PageType {
	case models.PageSuccess:
		s.SetState(models.StateSucceeded)
		o.events.Result(s.ID, true, "Registration completed successfully")
	case models.PageError:
		s.SetState(models.StateFailed)
		msg := "Registration failed"
		if len(analysis.Errors) > 0 {
			msg = fmt.Sprintf("Registration failed: %s", strings.Join(analysis.Errors, "; "))
		}
		o.events.Result(s.ID, false, msg)
	}
}

// Analyze runs the structured page query. Detecting an OTP or captcha
// input suspends the workflow: the session enters awaiting_input, a
// pending verification is registered, observers are prompted, and a
// goroutine parks on the verification future until SubmitInput resolves
// it or the session closes.
func (o *Orchestrator) Analyze(ctx context.Context, req models.SessionRequest) (*models.AnalyzeResponse, error) {
	s, done, err := o.begin(req.SessionID, "analyze")
	if err != nil {
		return nil, err
	}
	// Hold the slot through the suspend transition: no other operation
	// may slip in between detecting the input prompt and entering
	// awaiting_input. The resume path blocks on the slot, not on this.
	defer done()

	analysis, shot, err := o.exec.AnalyzePage(ctx, s.ID, s.Engine)
	if err != nil {
		return nil, err
	}

	if analysis.HasOTP || analysis.HasCaptcha {
		if err := o.suspend(s, analysis, shot); err != nil {
			return nil, err
		}
	}
	return &models.AnalyzeResponse{Success: true, Analysis: analysis, Screenshot: shot}, nil
}

func (o *Orchestrator) suspend(s *session.Session, analysis *models.PageAnalysis, shot string) error {
	kind := models.InputOTP
	message := "Please enter the OTP sent to your phone"
	if !analysis.HasOTP {
		kind = models.InputCaptcha
		message = "Please solve the captcha"
	}

	// NewVerification transitions into awaiting_input atomically and
	// refuses on a session that closed while the analysis ran.
	v, err := s.NewVerification(kind)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"message": message}
	if kind == models.InputCaptcha && shot != "" {
		fields["imageBase64"] = shot
	}
	o.events.RequestInput(s.ID, kind, fields)
	o.events.Log(s.ID, "warning", message)

	go o.awaitVerification(s, v)
	return nil
}

// awaitVerification is the suspended half of the protocol. It wakes on
// resolution and feeds the value into the verification input, or unwinds
// cleanly when the session closes underneath it.
func (o *Orchestrator) awaitVerification(s *session.Session, v *session.Verification) {
	value, err := v.Await(context.Background())
	if err != nil {
		log.Printf("session %s: verification abandoned: %v", s.ID, err)
		v.Finish(session.VerificationOutcome{Err: err})
		return
	}

	s.ClearVerification()
	s.SetState(models.StateRunning)
	o.events.Log(s.ID, "success", fmt.Sprintf("%s received, continuing...", strings.ToUpper(v.Kind)))

	if err := s.Begin(context.Background()); err != nil {
		v.Finish(session.VerificationOutcome{Err: err})
		return
	}
	shot, err := o.exec.EnterVerificationCode(context.Background(), s.ID, s.Engine, v.Kind, value)
	s.End()

	v.Finish(session.VerificationOutcome{Screenshot: shot, Err: err})
}

// SubmitInput resolves the session's pending verification with a
// human-provided value and waits for the resumed workflow to consume it.
func (o *Orchestrator) SubmitInput(ctx context.Context, req models.InputRequest) (*models.InputResponse, error) {
	s, ok := o.registry.Get(req.SessionID)
	if !ok {
		return nil, models.ErrSessionNotFound
	}

	v := s.Pending()
	if v == nil {
		return nil, models.ErrNoPendingVerification
	}
	if v.Kind != req.InputType {
		return nil, models.NewValidationError("session is awaiting %s input, not %s", v.Kind, req.InputType)
	}

	if err := v.Resolve(req.Value); err != nil {
		return nil, err
	}
	outcome, err := v.WaitFinished(ctx)
	if err != nil {
		return nil, err
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return &models.InputResponse{Success: true, Screenshot: outcome.Screenshot}, nil
}

// Execute runs a raw planner instruction.
func (o *Orchestrator) Execute(ctx context.Context, req models.ExecuteRequest) (*models.ExecuteResponse, error) {
	s, done, err := o.begin(req.SessionID, "execute")
	if err != nil {
		return nil, err
	}
	defer done()

	result, shot, err := o.exec.Execute(ctx, s.ID, s.Engine, req.Action, req.Prompt)
	if err != nil {
		return nil, err
	}
	return &models.ExecuteResponse{Success: true, Result: result, Screenshot: shot}, nil
}

// Screenshot captures the current page. It bypasses the workflow guard:
// it is a read-only observability surface and must work regardless of
// what else is going on.
func (o *Orchestrator) Screenshot(ctx context.Context, req models.SessionRequest) (*models.ScreenshotResponse, error) {
	s, ok := o.registry.Get(req.SessionID)
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	shot, err := o.exec.Screenshot(ctx, s.ID, s.Engine)
	if err != nil {
		return nil, err
	}
	return &models.ScreenshotResponse{Success: true, Screenshot: shot}, nil
}

// Close tears the session down. Idempotent; closing an unknown id still
// succeeds.
func (o *Orchestrator) Close(ctx context.Context, req models.SessionRequest) (*models.CloseResponse, error) {
	if _, ok := o.registry.Get(req.SessionID); ok {
		o.events.Status(req.SessionID, "close", "Session closed")
	}
	o.registry.Close(ctx, req.SessionID)
	return &models.CloseResponse{Success: true}, nil
}

// begin resolves the session and claims its operation slot, enforcing
// the state machine: terminal states and the awaiting_input suspend
// point reject every workflow-advancing operation.
func (o *Orchestrator) begin(sessionID, op string) (*session.Session, func(), error) {
	s, ok := o.registry.Get(sessionID)
	if !ok {
		return nil, nil, models.ErrSessionNotFound
	}

	state := s.State()
	if state.Terminal() || state == models.StateAwaitingInput {
		return nil, nil, &models.InvalidStateError{Op: op, State: state}
	}

	if err := s.TryBegin(); err != nil {
		return nil, nil, err
	}
	return s, s.End, nil
}
