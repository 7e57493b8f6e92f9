package auth

import (
	"errors"
	"net/http"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUnauthorized       = errors.New("session missing or expired")
	ErrInvalidToken       = errors.New("token invalid or expired")
	ErrInvalidInput       = errors.New("invalid input")
)

// ProviderError is a failure reported by the credential provider. Message is
// safe to show to the user.
type ProviderError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps a sentinel error with a user facing message
func NewProviderError(status int, code, message string, err error) *ProviderError {
	return &ProviderError{Status: status, Code: code, Message: message, Err: err}
}

// Message returns the user facing text of a provider failure
func Message(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return "An unexpected error occurred"
}

// ErrorEmailTaken reports a sign-up for an email that already has an account
func ErrorEmailTaken() error {
	return NewProviderError(http.StatusUnprocessableEntity, "user_already_exists", "User already registered", ErrEmailTaken)
}

// ErrorInvalidCredentials reports a failed password sign-in
func ErrorInvalidCredentials() error {
	return NewProviderError(http.StatusBadRequest, "invalid_credentials", "Invalid login credentials", ErrInvalidCredentials)
}

// ErrorEmailNotConfirmed reports a sign-in before the email was verified
func ErrorEmailNotConfirmed() error {
	return NewProviderError(http.StatusBadRequest, "email_not_confirmed", "Email not confirmed", ErrEmailNotConfirmed)
}

// ErrorUnauthorized reports a missing, expired or revoked session
func ErrorUnauthorized() error {
	return NewProviderError(http.StatusUnauthorized, "session_not_found", "Auth session missing!", ErrUnauthorized)
}

// ErrorInvalidToken reports a one-time token that cannot be redeemed
func ErrorInvalidToken() error {
	return NewProviderError(http.StatusForbidden, "otp_expired", "Email link is invalid or has expired", ErrInvalidToken)
}

// ErrorInvalidInput reports input the provider refuses before doing any work
func ErrorInvalidInput(message string) error {
	return NewProviderError(http.StatusUnprocessableEntity, "validation_failed", message, ErrInvalidInput)
}
