package service

import (
	"net/url"
)

// OutcomeKind is either success or error
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
)

// ErrorClass says which part of a flow failed
type ErrorClass string

const (
	ClassValidation          ErrorClass = "validation"
	ClassCredentialProvider  ErrorClass = "credential_provider"
	ClassProfileWrite        ErrorClass = "profile_write"
	ClassPartialProvisioning ErrorClass = "partial_provisioning"
)

// Redirect targets
const (
	PathSignUp              = "/sign-up"
	PathSignIn              = "/sign-in"
	PathForgotPassword      = "/forgot-password"
	PathResetPassword       = "/protected/reset-password"
	PathStudentDashboard    = "/student/dashboard"
	PathCounsellorDashboard = "/counsellor/dashboard"
)

// Outcome is the single result of a request: where to send the user and
// what to tell them
type Outcome struct {
	Kind         OutcomeKind
	RedirectPath string
	Message      string
	// Class is set on error outcomes
	Class ErrorClass
	// Flagged marks a sign-up that left an account without its role profile
	Flagged bool
}

// Success builds a success outcome
func Success(path, message string) Outcome {
	return Outcome{Kind: OutcomeSuccess, RedirectPath: path, Message: message}
}

// Failure builds an error outcome
func Failure(class ErrorClass, path, message string) Outcome {
	return Outcome{Kind: OutcomeError, RedirectPath: path, Message: message, Class: class}
}

// Redirect returns a plain redirect outcome with no message
func Redirect(path string) Outcome {
	return Outcome{Kind: OutcomeSuccess, RedirectPath: path}
}

// IsError reports whether the outcome is an error
func (o Outcome) IsError() bool {
	return o.Kind == OutcomeError
}

// Location encodes the outcome as the redirect target with the message in
// an error or success query parameter
func (o Outcome) Location() string {
	if o.Message == "" {
		return o.RedirectPath
	}

	u, err := url.Parse(o.RedirectPath)
	if err != nil {
		return o.RedirectPath
	}
	q := u.Query()
	q.Set(string(o.Kind), o.Message)
	u.RawQuery = q.Encode()
	return u.String()
}
