package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formpilot/formpilot/pkg/models"
)

func TestHumanizeKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"mobileNumber", "mobile number"},
		{"dob", "date of birth"},
		{"fatherName", "father's name"},
		{"rollNumber", "roll number"},
		{"exam_center_code", "exam center code"},
		{"admit-card-id", "admit card id"},
		{"OTPCode", "otp code"},
		{"simple", "simple"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, humanizeKey(tc.key), tc.key)
	}
}

func TestResolveLabelPrefersExplicitLabel(t *testing.T) {
	f := models.FormField{Key: "mobileNumber", Label: "Mobile No. (10 digits)"}
	assert.Equal(t, "Mobile No. (10 digits)", resolveLabel(f))

	f.Label = ""
	assert.Equal(t, "mobile number", resolveLabel(f))
}

func TestFieldInstructionText(t *testing.T) {
	f := models.FormField{Key: "firstName", Value: "Priya", Type: models.FieldText}
	got := fieldInstruction(f)
	assert.Equal(t, `type "Priya" into the first name field`, got)
}

func TestFieldInstructionSelect(t *testing.T) {
	f := models.FormField{Key: "category", Value: "General", Type: models.FieldSelect}
	got := fieldInstruction(f)
	assert.Contains(t, got, "dropdown")
	assert.Contains(t, got, `"General"`)
	assert.Contains(t, got, "category")
}

func TestFieldInstructionDate(t *testing.T) {
	f := models.FormField{Key: "dateOfBirth", Value: "1999-04-12", Type: models.FieldDate}
	got := fieldInstruction(f)
	assert.Contains(t, got, `"1999-04-12"`)
	assert.Contains(t, got, "date of birth")
	assert.Contains(t, got, "date picker")
}

func TestFieldInstructionConfirmTargetsSecondOccurrence(t *testing.T) {
	f := models.FormField{Key: "confirmEmail", Label: "Confirm Email", Value: "a@b.in", Type: models.FieldText}
	got := fieldInstruction(f)
	assert.Contains(t, got, "second")
	assert.Contains(t, got, "Email")
	assert.Contains(t, got, "not the first one")

	f = models.FormField{Key: "reenterPassword", Label: "Re-enter Password", Value: "hunter2", Type: models.FieldText}
	got = fieldInstruction(f)
	assert.Contains(t, got, "second")
	assert.Contains(t, got, "Password")
}

func TestCheckboxInstructionDeclaration(t *testing.T) {
	got := checkboxInstruction("I hereby declare the above information is true")
	assert.Contains(t, got, "declaration or consent checkbox")
	assert.Contains(t, got, "if it is not already checked")

	got = checkboxInstruction("Same as permanent address")
	assert.Contains(t, got, "unchecked checkbox")
	assert.NotContains(t, got, "declaration")
}

func TestIsDeclarationLabel(t *testing.T) {
	assert.True(t, isDeclarationLabel("I agree to the Terms and Conditions"))
	assert.True(t, isDeclarationLabel("I HEREBY DECLARE"))
	assert.False(t, isDeclarationLabel("Subscribe to newsletter"))
}

func TestClickInstructionKinds(t *testing.T) {
	assert.Equal(t, `click the "Save Draft" button`, clickInstruction("Save Draft", "button"))
	assert.Equal(t, `click the link "Forgot password"`, clickInstruction("Forgot password", "link"))
	assert.Contains(t, clickInstruction("I agree to the terms", "checkbox"), "checkbox")
}

func TestVerificationInstruction(t *testing.T) {
	otp := verificationInstruction(models.InputOTP, "482913")
	assert.Contains(t, otp, `"482913"`)
	assert.Contains(t, otp, "one-time password")
	assert.Contains(t, otp, "one per box")

	captcha := verificationInstruction(models.InputCaptcha, "x7kq2")
	assert.Contains(t, captcha, "captcha answer input")
}

func TestInstructionsAreDeterministic(t *testing.T) {
	f := models.FormField{Key: "mobileNumber", Value: "9876543210", Type: models.FieldText}
	assert.Equal(t, fieldInstruction(f), fieldInstruction(f))
}
