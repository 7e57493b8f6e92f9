package signup

import (
	"strconv"
	"unicode/utf8"

	"quad/internal/validation"
)

// Validation messages shown to the user on the sign-up page
const (
	MsgAllFieldsRequired     = "All fields are required."
	MsgInvalidRole           = "Invalid role provided."
	MsgPasswordTooShort      = "Password must be at least 6 characters."
	MsgStudentFieldsRequired = "All student fields are required."
	MsgAgeOutOfRange         = "Age must be between 5 and 22."
)

// Student age bounds, inclusive
const (
	MinStudentAge = 5
	MaxStudentAge = 22
)

// ValidationError is returned by Validate with the first rule the form broke
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks a sign-up form and builds the request it describes.
// It stops at the first violated rule and has no side effects.
func Validate(f Form) (*Request, error) {
	if f.Email == "" || f.Password == "" || f.FullName == "" || f.Role == "" {
		return nil, &ValidationError{Message: MsgAllFieldsRequired}
	}

	role, ok := ParseRole(f.Role)
	if !ok {
		return nil, &ValidationError{Message: MsgInvalidRole}
	}

	if utf8.RuneCountInString(f.Password) < validation.MinPasswordLength {
		return nil, &ValidationError{Message: MsgPasswordTooShort}
	}

	req := &Request{
		Email:    f.Email,
		Password: f.Password,
		FullName: f.FullName,
	}

	switch role {
	case RoleStudent:
		if f.Age == "" || f.Grade == "" || f.School == "" {
			return nil, &ValidationError{Message: MsgStudentFieldsRequired}
		}
		age, err := strconv.Atoi(f.Age)
		if err != nil || age < MinStudentAge || age > MaxStudentAge {
			return nil, &ValidationError{Message: MsgAgeOutOfRange}
		}
		req.Details = Student{Age: age, Grade: f.Grade, School: f.School}
	case RoleCounsellor:
		req.Details = Counsellor{}
	}

	return req, nil
}
