package executor

import (
	"strings"
	"unicode"
)

// wellKnownLabels maps common registration-form field keys to the label
// text a human would read on the page. Keys not listed here fall back to
// generic humanization.
var wellKnownLabels = map[string]string{
	"mobileNumber":  "mobile number",
	"phoneNumber":   "phone number",
	"email":         "email address",
	"emailAddress":  "email address",
	"fullName":      "full name",
	"firstName":     "first name",
	"middleName":    "middle name",
	"lastName":      "last name",
	"fatherName":    "father's name",
	"motherName":    "mother's name",
	"dateOfBirth":   "date of birth",
	"dob":           "date of birth",
	"gender":        "gender",
	"category":      "category",
	"nationality":   "nationality",
	"aadhaarNumber": "aadhaar number",
	"pincode":       "pin code",
	"postalCode":    "postal code",
	"address":       "address",
	"city":          "city",
	"state":         "state",
	"district":      "district",
	"qualification": "qualification",
	"examCenter":    "exam center",
	"password":      "password",
}

// humanizeKey turns a field key into readable label text: known keys use
// the static table, everything else gets camelCase/underscores split and
// lower-cased.
func humanizeKey(key string) string {
	if label, ok := wellKnownLabels[key]; ok {
		return label
	}

	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(' ')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteRune(' ')
			} else if i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]) {
				// boundary of an acronym run, e.g. OTPCode -> otp code
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
