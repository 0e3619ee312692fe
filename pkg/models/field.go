package models

// FieldType classifies a form field for instruction phrasing
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldDate     FieldType = "date"
)

// FormField describes one field to fill. Label is optional; when empty a
// human-readable label is derived from Key.
type FormField struct {
	Key   string    `json:"key"`
	Label string    `json:"label,omitempty"`
	Value string    `json:"value"`
	Type  FieldType `json:"type,omitempty"`
}

// FieldResult is the per-field outcome of a fill-form operation
type FieldResult struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PageAnalysis is the structured result of a read-only page query. It is
// the orchestrator's primary signal for deciding the next step.
type PageAnalysis struct {
	PageType               string   `json:"pageType"`
	FormFields             []string `json:"formFields"`
	HasUncheckedCheckbox   bool     `json:"hasUncheckedCheckbox"`
	UncheckedCheckboxLabel string   `json:"uncheckedCheckboxLabel,omitempty"`
	HasOTP                 bool     `json:"hasOtp"`
	HasCaptcha             bool     `json:"hasCaptcha"`
	Buttons                []string `json:"buttons"`
	Errors                 []string `json:"errors"`
}

// Page classifications reported by the vision engine
const (
	PageLogin   = "login"
	PageForm    = "form"
	PageOTP     = "otp"
	PageCaptcha = "captcha"
	PageSuccess = "success"
	PageError   = "error"
	PageUnknown = "unknown"
)
