package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/models"
)

// Messages for the sign-in and password flows
const (
	MsgCredentialsRequired  = "Email and password are required"
	MsgRoleNotFound         = "User role not found"
	MsgEmailRequired        = "Email is required"
	MsgCouldNotReset        = "Could not reset password"
	MsgCheckEmailForReset   = "Check your email for a link to reset your password."
	MsgPasswordsRequired    = "Password and confirm password are required"
	MsgPasswordsDoNotMatch  = "Passwords do not match"
	MsgPasswordUpdateFailed = "Password update failed"
	MsgPasswordUpdated      = "Password updated"
)

// SessionService handles sign-in, sign-out and the password flows. Each call
// makes at most a couple of provider calls and produces one outcome.
type SessionService struct {
	provider   auth.Provider
	appBaseURL string
	logger     *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(provider auth.Provider, appBaseURL string, logger *zap.Logger) *SessionService {
	return &SessionService{
		provider:   provider,
		appBaseURL: appBaseURL,
		logger:     logger.Named("session"),
	}
}

// DashboardPath returns the landing page for a role
func DashboardPath(role string) (string, bool) {
	switch role {
	case models.RoleStudent:
		return PathStudentDashboard, true
	case models.RoleCounsellor:
		return PathCounsellorDashboard, true
	}
	return "", false
}

// SignIn authenticates with a password and sends the user to their role's
// dashboard. The session is nil on error.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (Outcome, *auth.Session) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Failure(ClassValidation, PathSignIn, MsgCredentialsRequired), nil
	}

	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Info("sign-in failed", zap.Error(err))
		return Failure(ClassCredentialProvider, PathSignIn, auth.Message(err)), nil
	}

	user, err := s.provider.GetUser(ctx, session.AccessToken)
	if err != nil {
		s.logger.Warn("failed to load user after sign-in", zap.Error(err))
		return Failure(ClassCredentialProvider, PathSignIn, auth.Message(err)), nil
	}

	path, ok := DashboardPath(user.Metadata.Role)
	if !ok {
		s.logger.Warn("signed-in user has no usable role",
			zap.String("user_id", user.ID),
			zap.String("role", user.Metadata.Role))
		if err := s.provider.SignOut(ctx, session.AccessToken); err != nil {
			s.logger.Error("failed to revoke session", zap.Error(err))
		}
		return Failure(ClassCredentialProvider, PathSignIn, MsgRoleNotFound), nil
	}

	return Redirect(path), session
}

// CurrentUser returns the user owning the session token
func (s *SessionService) CurrentUser(ctx context.Context, accessToken string) (*auth.User, error) {
	return s.provider.GetUser(ctx, accessToken)
}

// ForgotPassword emails a recovery link. A local callbackURL replaces the
// success message redirect.
func (s *SessionService) ForgotPassword(ctx context.Context, email, callbackURL string) Outcome {
	email = strings.TrimSpace(email)
	if email == "" {
		return Failure(ClassValidation, PathForgotPassword, MsgEmailRequired)
	}

	redirectTo := s.appBaseURL + "/auth/confirm?" + url.Values{"next": {PathResetPassword}}.Encode()
	if err := s.provider.ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		s.logger.Error("password reset request failed", zap.Error(err))
		return Failure(ClassCredentialProvider, PathForgotPassword, MsgCouldNotReset)
	}

	if next, ok := SafeRedirectPath(callbackURL); ok {
		return Redirect(next)
	}
	return Success(PathForgotPassword, MsgCheckEmailForReset)
}

// ResetPassword sets a new password for the signed-in user
func (s *SessionService) ResetPassword(ctx context.Context, accessToken, password, confirmPassword string) Outcome {
	if password == "" || confirmPassword == "" {
		return Failure(ClassValidation, PathResetPassword, MsgPasswordsRequired)
	}
	if password != confirmPassword {
		return Failure(ClassValidation, PathResetPassword, MsgPasswordsDoNotMatch)
	}

	if err := s.provider.UpdatePassword(ctx, accessToken, password); err != nil {
		s.logger.Warn("password update failed", zap.Error(err))
		return Failure(ClassCredentialProvider, PathResetPassword, MsgPasswordUpdateFailed)
	}
	return Success(PathResetPassword, MsgPasswordUpdated)
}

// SignOut revokes the session and always lands on the sign-in page
func (s *SessionService) SignOut(ctx context.Context, accessToken string) Outcome {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("sign-out failed", zap.Error(err))
	}
	return Redirect(PathSignIn)
}

// Confirm redeems an emailed link. Recovery links land on the reset
// password page unless next names another local path.
func (s *SessionService) Confirm(ctx context.Context, tokenHash, otpType, next string) (Outcome, *auth.Session) {
	if tokenHash == "" || (otpType != auth.OTPTypeSignup && otpType != auth.OTPTypeRecovery) {
		return Failure(ClassValidation, PathSignIn, "Invalid confirmation link"), nil
	}

	session, err := s.provider.VerifyOTP(ctx, tokenHash, otpType)
	if err != nil {
		s.logger.Info("confirmation link rejected", zap.String("type", otpType), zap.Error(err))
		return Failure(ClassCredentialProvider, PathSignIn, auth.Message(err)), nil
	}

	if path, ok := SafeRedirectPath(next); ok {
		return Redirect(path), session
	}
	if otpType == auth.OTPTypeRecovery {
		return Redirect(PathResetPassword), session
	}

	user, err := s.provider.GetUser(ctx, session.AccessToken)
	if err == nil {
		if path, ok := DashboardPath(user.Metadata.Role); ok {
			return Redirect(path), session
		}
	}
	return Redirect("/"), session
}

// SafeRedirectPath accepts only paths on this site
func SafeRedirectPath(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return raw, true
}

// IsUnauthorized reports whether err means the session is gone
func IsUnauthorized(err error) bool {
	return errors.Is(err, auth.ErrUnauthorized)
}
