package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/formpilot/formpilot/pkg/models"
)

// Instruction construction. Instructions are deterministic natural
// language: the same field always produces the same text, so a run is
// reproducible against a scripted engine.

var declarationKeywords = []string{"hereby", "declare", "agree", "terms"}

var confirmPattern = regexp.MustCompile(`(?i)\b(confirm|re-?enter|retype)\b`)

// resolveLabel returns the field's explicit label, or a humanized form
// of its key.
func resolveLabel(f models.FormField) string {
	if f.Label != "" {
		return f.Label
	}
	return humanizeKey(f.Key)
}

// isDeclarationLabel detects consent/terms checkboxes, which silently
// block submission when left unchecked and need distinct phrasing.
func isDeclarationLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, kw := range declarationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func checkboxInstruction(label string) string {
	if isDeclarationLabel(label) {
		return fmt.Sprintf("find the declaration or consent checkbox next to the statement %q and click it if it is not already checked", label)
	}
	return fmt.Sprintf("find and click the unchecked checkbox near the label %q", label)
}

// fieldInstruction builds the instruction that fills one form field.
func fieldInstruction(f models.FormField) string {
	label := resolveLabel(f)

	switch f.Type {
	case models.FieldSelect:
		return fmt.Sprintf("open the %s dropdown and choose the option %q", label, f.Value)
	case models.FieldCheckbox:
		return checkboxInstruction(label)
	case models.FieldDate:
		return fmt.Sprintf("enter the date %q into the %s field, using the date picker if one appears", f.Value, label)
	}

	if confirmPattern.MatchString(label) {
		base := strings.Join(strings.Fields(confirmPattern.ReplaceAllString(label, "")), " ")
		if base == "" {
			base = label
		}
		return fmt.Sprintf("type %q into the second %s field, the confirmation field, not the first one", f.Value, base)
	}
	return fmt.Sprintf("type %q into the %s field", f.Value, label)
}

func clickInstruction(target, kind string) string {
	switch kind {
	case "checkbox":
		return checkboxInstruction(target)
	case "link":
		return fmt.Sprintf("click the link %q", target)
	default:
		return fmt.Sprintf("click the %q button", target)
	}
}

// submitInstruction targets the semantic role rather than exact text,
// since the primary call-to-action is worded differently on every site.
const submitInstruction = "click the most prominent primary call-to-action button on this page, " +
	"such as Submit, Continue, Next, Proceed, Register or Apply"

// verificationInstruction covers both a single input and a row of
// single-digit boxes.
func verificationInstruction(kind, value string) string {
	field := "one-time password (OTP) input"
	if kind == models.InputCaptcha {
		field = "captcha answer input"
	}
	return fmt.Sprintf("enter the code %q into the %s; if the code is split across multiple single-digit boxes, type the digits one per box in sequence", value, field)
}

// analyzeInstruction is the read-only structured page query.
const analyzeInstruction = "inspect the current page and answer as JSON with these keys: " +
	`"pageType" (one of login, form, otp, captcha, success, error), ` +
	`"formFields" (labels of visible form fields), ` +
	`"hasUncheckedCheckbox" and "uncheckedCheckboxLabel" (is there a required declaration or consent checkbox that is still unchecked, and its label text), ` +
	`"hasOtp" (is there an input for a one-time password), ` +
	`"hasCaptcha" (is there a captcha to solve), ` +
	`"buttons" (labels of visible buttons), ` +
	`"errors" (any visible validation or error messages)`
