package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"quad/internal/auth"
)

type userResponse struct {
	ID               string        `json:"id"`
	Email            string        `json:"email"`
	EmailConfirmedAt *time.Time    `json:"email_confirmed_at"`
	UserMetadata     auth.Metadata `json:"user_metadata"`
}

func (u userResponse) toUser() auth.User {
	return auth.User{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		Confirmed: u.EmailConfirmedAt != nil,
	}
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

func (s sessionResponse) toSession() *auth.Session {
	if s.AccessToken == "" {
		return nil
	}
	session := &auth.Session{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
	switch {
	case s.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		session.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return session
}

// signUpResponse is a session when the project confirms emails
// automatically and a bare user otherwise
type signUpResponse struct {
	sessionResponse
	userResponse
}

// SignUp creates an account through POST /signup
func (c *Client) SignUp(ctx context.Context, params auth.SignUpParams) (*auth.Account, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data":     params.Metadata,
	}

	var resp signUpResponse
	if err := c.do(ctx, http.MethodPost, "/signup", redirectQuery(params.EmailRedirectTo), "", body, &resp); err != nil {
		return nil, err
	}

	user := resp.userResponse
	if resp.sessionResponse.User != nil {
		user = *resp.sessionResponse.User
	}

	return &auth.Account{
		User:    user.toUser(),
		Session: resp.sessionResponse.toSession(),
	}, nil
}

// SignInWithPassword exchanges credentials for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	body := map[string]string{"email": email, "password": password}
	query := url.Values{"grant_type": {"password"}}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/token", query, "", body, &resp); err != nil {
		return nil, err
	}

	session := resp.toSession()
	if session == nil {
		return nil, errors.New("auth service returned no session")
	}
	return session, nil
}

// GetUser verifies the access token locally when a JWT secret is configured
// and falls back to GET /user otherwise
func (c *Client) GetUser(ctx context.Context, accessToken string) (*auth.User, error) {
	if accessToken == "" {
		return nil, auth.ErrorUnauthorized()
	}

	if c.jwtSecret != nil {
		claims, err := c.parseAccessToken(accessToken)
		if err != nil {
			return nil, auth.ErrorUnauthorized()
		}
		user := claims.toUser()
		return &user, nil
	}

	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	user := resp.toUser()
	return &user, nil
}

// ResetPasswordForEmail asks the auth service to email a recovery link
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/recover", redirectQuery(redirectTo), "", body, nil)
}

// UpdatePassword sets a new password for the token's user
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) error {
	if accessToken == "" {
		return auth.ErrorUnauthorized()
	}
	body := map[string]string{"password": password}
	return c.do(ctx, http.MethodPut, "/user", nil, accessToken, body, nil)
}

// SignOut revokes the token's session
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil, nil)
	// An already revoked session is signed out
	if errors.Is(err, auth.ErrUnauthorized) {
		return nil
	}
	return err
}

// VerifyOTP redeems an emailed token hash
func (c *Client) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*auth.Session, error) {
	body := map[string]string{"token_hash": tokenHash, "type": otpType}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/verify", nil, "", body, &resp); err != nil {
		return nil, err
	}

	session := resp.toSession()
	if session == nil {
		return nil, fmt.Errorf("auth service returned no session: %w", auth.ErrInvalidToken)
	}
	return session, nil
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {redirectTo}}
}
