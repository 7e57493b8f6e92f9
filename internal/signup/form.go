package signup

import (
	"net/url"
	"strings"
)

// Form field names shared by the sign-up page and the intake
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldFullName = "fullName"
	FieldRole     = "role"
	FieldAge      = "age"
	FieldGrade    = "grade"
	FieldSchool   = "school"
)

// Form holds the raw values of a submitted sign-up form after normalization.
// Age stays a string so the validator can report a malformed number.
type Form struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Age      string `json:"age"`
	Grade    string `json:"grade"`
	School   string `json:"school"`
}

// FromValues reads a sign-up form from submitted values. Every field except
// the password is trimmed.
func FromValues(values url.Values) Form {
	return Form{
		Email:    strings.TrimSpace(values.Get(FieldEmail)),
		Password: values.Get(FieldPassword),
		FullName: strings.TrimSpace(values.Get(FieldFullName)),
		Role:     strings.TrimSpace(values.Get(FieldRole)),
		Age:      strings.TrimSpace(values.Get(FieldAge)),
		Grade:    strings.TrimSpace(values.Get(FieldGrade)),
		School:   strings.TrimSpace(values.Get(FieldSchool)),
	}
}

// Normalize applies the same trimming as FromValues to a form decoded
// from another source, such as a JSON body.
func (f Form) Normalize() Form {
	return Form{
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
		FullName: strings.TrimSpace(f.FullName),
		Role:     strings.TrimSpace(f.Role),
		Age:      strings.TrimSpace(f.Age),
		Grade:    strings.TrimSpace(f.Grade),
		School:   strings.TrimSpace(f.School),
	}
}
