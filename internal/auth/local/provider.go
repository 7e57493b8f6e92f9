package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/security"
	"quad/internal/validation"
)

// Mailer delivers the links a local account needs to confirm its email
// address or recover its password
type Mailer interface {
	SendConfirmationEmail(ctx context.Context, toEmail, toName, link string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, link string) error
}

// Options configures the local provider
type Options struct {
	AppBaseURL      string
	SessionDuration time.Duration
	TokenTTL        time.Duration
	// AutoConfirm skips email confirmation and issues a session on sign-up
	AutoConfirm bool
}

// Provider is a credential provider backed by the application's own
// database. Passwords are bcrypt hashed and emailed tokens are stored
// as SHA-256 hashes.
type Provider struct {
	accounts *repository.AccountRepository
	mailer   Mailer
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

var _ auth.Provider = (*Provider)(nil)

// NewProvider creates a local credential provider
func NewProvider(accounts *repository.AccountRepository, mailer Mailer, opts Options, logger *zap.Logger) *Provider {
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = 24 * time.Hour
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	return &Provider{
		accounts: accounts,
		mailer:   mailer,
		opts:     opts,
		logger:   logger.Named("auth.local"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SignUp creates an account. Unless AutoConfirm is set, a confirmation link
// is emailed and no session is returned.
func (p *Provider) SignUp(ctx context.Context, params auth.SignUpParams) (*auth.Account, error) {
	if err := validation.ValidateEmail(params.Email); err != nil {
		return nil, auth.ErrorInvalidInput("Unable to validate email address: invalid format")
	}
	if err := validation.ValidatePassword(params.Password); err != nil {
		return nil, auth.ErrorInvalidInput(fmt.Sprintf("Password should be at least %d characters.", validation.MinPasswordLength))
	}

	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := p.now()
	account := &models.Account{
		ID:           security.GenerateSessionID(),
		Email:        validation.NormalizeEmail(params.Email),
		PasswordHash: passwordHash,
		FullName:     params.Metadata.FullName,
		Role:         params.Metadata.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var token *models.OneTimeToken
	var rawToken string
	if p.opts.AutoConfirm {
		account.ConfirmedAt = &now
	} else {
		rawToken, token, err = p.newToken(account.ID, models.TokenTypeSignup)
		if err != nil {
			return nil, err
		}
	}

	err = p.accounts.CreateAccount(ctx, account, token)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, auth.ErrorEmailTaken()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	result := &auth.Account{User: toUser(account)}

	if p.opts.AutoConfirm {
		session, err := p.startSession(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		result.Session = session
		return result, nil
	}

	link, err := p.buildLink(params.EmailRedirectTo, rawToken, auth.OTPTypeSignup)
	if err != nil {
		return nil, err
	}
	if err := p.mailer.SendConfirmationEmail(ctx, account.Email, account.FullName, link); err != nil {
		// The account exists; the user can request another link by resetting
		// their password.
		p.logger.Error("failed to send confirmation email", zap.String("account_id", account.ID), zap.Error(err))
	}

	return result, nil
}

// SignInWithPassword checks the password and starts a session
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	account, err := p.accounts.GetAccountByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !security.CheckPassword(password, account.PasswordHash) {
		return nil, auth.ErrorInvalidCredentials()
	}
	if !account.IsConfirmed() {
		return nil, auth.ErrorEmailNotConfirmed()
	}

	return p.startSession(ctx, account.ID)
}

// GetUser returns the account owning the session token
func (p *Provider) GetUser(ctx context.Context, accessToken string) (*auth.User, error) {
	account, err := p.accountForSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user := toUser(account)
	return &user, nil
}

// ResetPasswordForEmail emails a recovery link. Unknown addresses succeed
// silently so the response does not reveal which emails have accounts.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	account, err := p.accounts.GetAccountByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		p.logger.Debug("password reset requested for unknown email")
		return nil
	}

	// Only the newest recovery link stays valid
	if err := p.accounts.DeleteAccountTokens(ctx, account.ID, models.TokenTypeRecovery); err != nil {
		return fmt.Errorf("failed to clear recovery tokens: %w", err)
	}

	rawToken, token, err := p.newToken(account.ID, models.TokenTypeRecovery)
	if err != nil {
		return err
	}
	if err := p.accounts.CreateToken(ctx, token); err != nil {
		return fmt.Errorf("failed to create recovery token: %w", err)
	}

	link, err := p.buildLink(redirectTo, rawToken, auth.OTPTypeRecovery)
	if err != nil {
		return err
	}
	if err := p.mailer.SendPasswordResetEmail(ctx, account.Email, account.FullName, link); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

// UpdatePassword sets a new password for the session's account
func (p *Provider) UpdatePassword(ctx context.Context, accessToken, password string) error {
	account, err := p.accountForSession(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return auth.ErrorInvalidInput(fmt.Sprintf("Password should be at least %d characters.", validation.MinPasswordLength))
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := p.accounts.UpdatePassword(ctx, account.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SignOut deletes the session
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := p.accounts.DeleteSession(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// VerifyOTP redeems an emailed token. Signup tokens confirm the account.
func (p *Provider) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*auth.Session, error) {
	if tokenHash == "" {
		return nil, auth.ErrorInvalidToken()
	}

	token, err := p.accounts.GetToken(ctx, hashToken(tokenHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token == nil || token.TokenType != otpType || !token.IsUsable() {
		return nil, auth.ErrorInvalidToken()
	}

	now := p.now()
	err = p.accounts.MarkTokenUsed(ctx, token.TokenHash, now)
	if errors.Is(err, repository.ErrTokenConsumed) {
		return nil, auth.ErrorInvalidToken()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark token used: %w", err)
	}

	if otpType == auth.OTPTypeSignup {
		if err := p.accounts.ConfirmAccount(ctx, token.AccountID, now); err != nil {
			return nil, fmt.Errorf("failed to confirm account: %w", err)
		}
	}

	return p.startSession(ctx, token.AccountID)
}

// Cleanup removes expired sessions and tokens. Run periodically.
func (p *Provider) Cleanup(ctx context.Context) error {
	if err := p.accounts.DeleteExpiredSessions(ctx); err != nil {
		return err
	}
	return p.accounts.DeleteExpiredTokens(ctx)
}

func (p *Provider) accountForSession(ctx context.Context, accessToken string) (*models.Account, error) {
	if accessToken == "" {
		return nil, auth.ErrorUnauthorized()
	}

	session, err := p.accounts.GetSession(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, auth.ErrorUnauthorized()
	}
	if session.IsExpired() {
		_ = p.accounts.DeleteSession(ctx, accessToken)
		return nil, auth.ErrorUnauthorized()
	}

	account, err := p.accounts.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, auth.ErrorUnauthorized()
	}
	return account, nil
}

func (p *Provider) startSession(ctx context.Context, accountID string) (*auth.Session, error) {
	session, err := p.accounts.CreateSession(ctx, security.GenerateSessionID(), accountID, p.now().Add(p.opts.SessionDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &auth.Session{AccessToken: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func (p *Provider) newToken(accountID, tokenType string) (string, *models.OneTimeToken, error) {
	raw, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := p.now()
	return raw, &models.OneTimeToken{
		TokenHash: hashToken(raw),
		AccountID: accountID,
		TokenType: tokenType,
		ExpiresAt: now.Add(p.opts.TokenTTL),
		CreatedAt: now,
	}, nil
}

// buildLink appends the token to redirectTo, which defaults to the
// application's /auth/confirm endpoint
func (p *Provider) buildLink(redirectTo, rawToken, otpType string) (string, error) {
	if redirectTo == "" {
		redirectTo = p.opts.AppBaseURL + "/auth/confirm"
	}
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect url: %w", err)
	}
	q := u.Query()
	q.Set("token_hash", rawToken)
	q.Set("type", otpType)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toUser(account *models.Account) auth.User {
	return auth.User{
		ID:        account.ID,
		Email:     account.Email,
		Metadata:  auth.Metadata{FullName: account.FullName, Role: account.Role},
		Confirmed: account.IsConfirmed(),
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
