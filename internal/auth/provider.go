package auth

import (
	"context"
	"time"
)

// One-time token types accepted by VerifyOTP
const (
	OTPTypeSignup   = "signup"
	OTPTypeRecovery = "recovery"
)

// Metadata is stored with an account when it is created. It is the source
// of the account's role on sign-in.
type Metadata struct {
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// User is the credential provider's view of an account
type User struct {
	ID        string
	Email     string
	Metadata  Metadata
	Confirmed bool
}

// Session is an authenticated session issued by the provider
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Account is the result of SignUp. Session is nil until the email address
// has been confirmed, unless the provider confirms accounts automatically.
type Account struct {
	User
	Session *Session
}

// SignUpParams describes a new account
type SignUpParams struct {
	Email    string
	Password string
	// EmailRedirectTo is where the confirmation link lands after verification
	EmailRedirectTo string
	Metadata        Metadata
}

// Provider creates and authenticates accounts. Implementations talk to the
// local accounts tables or to a hosted auth service.
type Provider interface {
	SignUp(ctx context.Context, params SignUpParams) (*Account, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// GetUser returns the user owning accessToken
	GetUser(ctx context.Context, accessToken string) (*User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
	// SignOut revokes accessToken. An empty token is a no-op.
	SignOut(ctx context.Context, accessToken string) error
	// VerifyOTP redeems an emailed token and starts a session
	VerifyOTP(ctx context.Context, tokenHash, otpType string) (*Session, error)
}
