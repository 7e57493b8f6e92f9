package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quad/internal/database"
	"quad/internal/models"
)

// IssueRepository stores partially provisioned sign-ups awaiting reconciliation
type IssueRepository struct {
	db *database.DB
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *database.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// CreateIssue records a provisioning issue
func (r *IssueRepository) CreateIssue(ctx context.Context, issue *models.ProvisioningIssue) error {
	query := `
		INSERT INTO provisioning_issues (id, account_id, email, role, stage, detail, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		issue.ID,
		issue.AccountID,
		issue.Email,
		issue.Role,
		issue.Stage,
		issue.Detail,
		issue.Payload,
		issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create provisioning issue: %w", err)
	}
	return nil
}

// ListOpenIssues returns unresolved issues, oldest first
func (r *IssueRepository) ListOpenIssues(ctx context.Context) ([]models.ProvisioningIssue, error) {
	query := `
		SELECT id, account_id, email, role, stage, detail, payload, created_at, resolved_at
		FROM provisioning_issues
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query provisioning issues: %w", err)
	}
	defer rows.Close()

	var issues []models.ProvisioningIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provisioning issue: %w", err)
		}
		issues = append(issues, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provisioning issues: %w", err)
	}

	return issues, nil
}

// GetIssue retrieves an issue by id
func (r *IssueRepository) GetIssue(ctx context.Context, id string) (*models.ProvisioningIssue, error) {
	query := `
		SELECT id, account_id, email, role, stage, detail, payload, created_at, resolved_at
		FROM provisioning_issues
		WHERE id = ?
	`
	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provisioning issue: %w", err)
	}
	return issue, nil
}

// MarkResolved closes an issue
func (r *IssueRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	query := "UPDATE provisioning_issues SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL"
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to resolve provisioning issue: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.ProvisioningIssue, error) {
	issue := &models.ProvisioningIssue{}
	var resolvedAt sql.NullTime
	err := row.Scan(
		&issue.ID,
		&issue.AccountID,
		&issue.Email,
		&issue.Role,
		&issue.Stage,
		&issue.Detail,
		&issue.Payload,
		&issue.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		issue.ResolvedAt = &t
	}
	return issue, nil
}
