package models

import "time"

// Account is a credential record owned by the local credential provider
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsConfirmed reports whether the account's email address has been verified
func (a *Account) IsConfirmed() bool {
	return a.ConfirmedAt != nil
}

// Session represents an authenticated session
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Token types for OneTimeToken
const (
	TokenTypeSignup   = "signup"
	TokenTypeRecovery = "recovery"
)

// OneTimeToken is an emailed confirmation or recovery token. Only the hash
// of the token is stored.
type OneTimeToken struct {
	TokenHash string
	AccountID string
	TokenType string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired
func (t *OneTimeToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsUsable reports whether the token can still be redeemed
func (t *OneTimeToken) IsUsable() bool {
	return t.UsedAt == nil && !t.IsExpired()
}
