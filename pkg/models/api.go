package models

import (
	"net/url"
	"strings"
	"time"
)

// Raw instruction actions accepted by the execute endpoint
const (
	ActionAct     = "act"
	ActionObserve = "observe"
	ActionExtract = "extract"
)

// Verification input kinds
const (
	InputOTP     = "otp"
	InputCaptcha = "captcha"
)

// InitRequest starts a session and navigates to the registration page.
type InitRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	URL       string `json:"url"`
}

func (r *InitRequest) Validate() error {
	if r.URL == "" {
		return NewValidationError("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewValidationError("url must be absolute: %q", r.URL)
	}
	return nil
}

// ExecuteRequest is the planner's escape hatch for raw instructions.
type ExecuteRequest struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	Prompt    string `json:"prompt"`
}

func (r *ExecuteRequest) Validate() error {
	if r.SessionID == "" {
		return NewValidationError("sessionId is required")
	}
	switch r.Action {
	case ActionAct, ActionObserve, ActionExtract:
	default:
		return NewValidationError("action must be act, observe or extract, got %q", r.Action)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return NewValidationError("prompt is required")
	}
	return nil
}

// FillFormRequest fills a batch of fields sequentially.
type FillFormRequest struct {
	SessionID string      `json:"sessionId"`
	Fields    []FormField `json:"fields"`
}

func (r *FillFormRequest) Validate() error {
	if r.SessionID == "" {
		return NewValidationError("sessionId is required")
	}
	if len(r.Fields) == 0 {
		return NewValidationError("fields must not be empty")
	}
	for i, f := range r.Fields {
		if f.Key == "" {
			return NewValidationError("fields[%d].key is required", i)
		}
		switch f.Type {
		case "", FieldText, FieldSelect, FieldCheckbox, FieldDate:
		default:
			return NewValidationError("fields[%d].type %q is not supported", i, f.Type)
		}
	}
	return nil
}

// ClickRequest clicks a named target.
type ClickRequest struct {
	SessionID string `json:"sessionId"`
	Target    string `json:"target"`
	Type      string `json:"type,omitempty"`
}

func (r *ClickRequest) Validate() error {
	if r.SessionID == "" {
		return NewValidationError("sessionId is required")
	}
	if strings.TrimSpace(r.Target) == "" {
		return NewValidationError("target is required")
	}
	switch r.Type {
	case "", "button", "checkbox", "link":
	default:
		return NewValidationError("type must be button, checkbox or link, got %q", r.Type)
	}
	return nil
}

// SessionRequest is the shared body for submit/analyze/screenshot/close.
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (r *SessionRequest) Validate() error {
	if r.SessionID == "" {
		return NewValidationError("sessionId is required")
	}
	return nil
}

// InputRequest resolves a pending verification with a human-provided value.
type InputRequest struct {
	SessionID string `json:"sessionId"`
	InputType string `json:"inputType"`
	Value     string `json:"value"`
}

func (r *InputRequest) Validate() error {
	if r.SessionID == "" {
		return NewValidationError("sessionId is required")
	}
	switch r.InputType {
	case InputOTP, InputCaptcha:
	default:
		return NewValidationError("inputType must be otp or captcha, got %q", r.InputType)
	}
	if r.Value == "" {
		return NewValidationError("value is required")
	}
	return nil
}

// InitResponse is returned by a successful init.
type InitResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	Screenshot string `json:"screenshot,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
}

// ExecuteResponse carries the result of a raw instruction.
type ExecuteResponse struct {
	Success    bool        `json:"success"`
	Result     interface{} `json:"result,omitempty"`
	Screenshot string      `json:"screenshot,omitempty"`
}

// FillFormResponse reports per-field outcomes.
type FillFormResponse struct {
	Success    bool          `json:"success"`
	Results    []FieldResult `json:"results"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// ClickResponse is returned after a click settles.
type ClickResponse struct {
	Success    bool   `json:"success"`
	Screenshot string `json:"screenshot,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
}

// SubmitResponse is returned after the primary call-to-action.
type SubmitResponse struct {
	Success    bool   `json:"success"`
	Screenshot string `json:"screenshot,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
}

// InputResponse acknowledges a consumed verification value.
type InputResponse struct {
	Success    bool   `json:"success"`
	Screenshot string `json:"screenshot,omitempty"`
}

// AnalyzeResponse carries the structured page analysis.
type AnalyzeResponse struct {
	Success    bool          `json:"success"`
	Analysis   *PageAnalysis `json:"analysis"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// ScreenshotResponse carries an on-demand capture.
type ScreenshotResponse struct {
	Success    bool   `json:"success"`
	Screenshot string `json:"screenshot"`
}

// CloseResponse acknowledges session teardown.
type CloseResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the uniform failure shape for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
