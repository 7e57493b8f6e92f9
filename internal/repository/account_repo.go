package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quad/internal/database"
	"quad/internal/models"
)

// accountMetadata is the JSON shape of accounts.user_metadata
type accountMetadata struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// AccountRepository handles database operations for local accounts,
// sessions and one-time tokens
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts an account and, when token is not nil, its first
// one-time token in the same transaction. A taken email returns ErrAlreadyExists.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account, token *models.OneTimeToken) error {
	metadata, err := json.Marshal(accountMetadata{FullName: account.FullName, Role: account.Role})
	if err != nil {
		return fmt.Errorf("failed to encode account metadata: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO accounts (id, email, password_hash, user_metadata, confirmed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			account.ID,
			account.Email,
			account.PasswordHash,
			string(metadata),
			nullTime(account.ConfirmedAt),
			account.CreatedAt,
			account.UpdatedAt,
		)
		if r.db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		if token != nil {
			if err := insertToken(ctx, tx, token); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAccountByEmail retrieves an account by email address
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getAccount(ctx, "email = ?", email)
}

// GetAccountByID retrieves an account by id
func (r *AccountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getAccount(ctx, "id = ?", id)
}

func (r *AccountRepository) getAccount(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, user_metadata, confirmed_at, created_at, updated_at
		FROM accounts
		WHERE ` + where

	account := &models.Account{}
	var metadata string
	var confirmedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&metadata,
		&confirmedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var meta accountMetadata
	if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode account metadata: %w", err)
	}
	account.FullName = meta.FullName
	account.Role = meta.Role
	if confirmedAt.Valid {
		t := confirmedAt.Time
		account.ConfirmedAt = &t
	}

	return account, nil
}

// ConfirmAccount marks the account's email as verified
func (r *AccountRepository) ConfirmAccount(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE accounts
		SET confirmed_at = ?, updated_at = ?
		WHERE id = ? AND confirmed_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, at, at, id); err != nil {
		return fmt.Errorf("failed to confirm account: %w", err)
	}
	return nil
}

// UpdatePassword replaces the account's password hash
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// CreateSession creates a new session for an account
func (r *AccountRepository) CreateSession(ctx context.Context, sessionID, accountID string, expiresAt time.Time) (*models.Session, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO sessions (id, account_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID, accountID, expiresAt, now); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// GetSession retrieves a session by ID
func (r *AccountRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, account_id, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.AccountID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session
func (r *AccountRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAccountSessions removes every session of an account
func (r *AccountRepository) DeleteAccountSessions(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to delete account sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions
func (r *AccountRepository) DeleteExpiredSessions(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}

// CreateToken stores a one-time token
func (r *AccountRepository) CreateToken(ctx context.Context, token *models.OneTimeToken) error {
	return insertToken(ctx, r.db, token)
}

func insertToken(ctx context.Context, q database.DBTX, token *models.OneTimeToken) error {
	query := `
		INSERT INTO one_time_tokens (token_hash, account_id, token_type, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := q.ExecContext(ctx, query, token.TokenHash, token.AccountID, token.TokenType, token.ExpiresAt, token.CreatedAt); err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// GetToken retrieves a one-time token by its hash
func (r *AccountRepository) GetToken(ctx context.Context, tokenHash string) (*models.OneTimeToken, error) {
	query := `
		SELECT token_hash, account_id, token_type, expires_at, used_at, created_at
		FROM one_time_tokens
		WHERE token_hash = ?
	`
	token := &models.OneTimeToken{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.TokenHash,
		&token.AccountID,
		&token.TokenType,
		&token.ExpiresAt,
		&usedAt,
		&token.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		token.UsedAt = &t
	}
	return token, nil
}

// MarkTokenUsed consumes a token. It returns ErrTokenConsumed when the token
// was already used.
func (r *AccountRepository) MarkTokenUsed(ctx context.Context, tokenHash string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE one_time_tokens SET used_at = ? WHERE token_hash = ? AND used_at IS NULL",
		at, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to mark token used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read token update result: %w", err)
	}
	if rows == 0 {
		return ErrTokenConsumed
	}
	return nil
}

// DeleteAccountTokens removes all tokens of one type for an account
func (r *AccountRepository) DeleteAccountTokens(ctx context.Context, accountID, tokenType string) error {
	query := "DELETE FROM one_time_tokens WHERE account_id = ? AND token_type = ?"
	if _, err := r.db.ExecContext(ctx, query, accountID, tokenType); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}

// DeleteExpiredTokens removes expired one-time tokens
func (r *AccountRepository) DeleteExpiredTokens(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM one_time_tokens WHERE expires_at < ?", time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
