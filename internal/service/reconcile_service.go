package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"quad/internal/models"
	"quad/internal/repository"
)

var (
	ErrIssueNotFound = errors.New("provisioning issue not found")
	ErrIssueResolved = errors.New("provisioning issue already resolved")
)

// ReconcileService lists and repairs accounts left without their profiles
type ReconcileService struct {
	profiles *repository.ProfileRepository
	issues   *repository.IssueRepository
	logger   *zap.Logger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(profiles *repository.ProfileRepository, issues *repository.IssueRepository, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		profiles: profiles,
		issues:   issues,
		logger:   logger.Named("reconcile"),
	}
}

// ListOpen returns unresolved issues, oldest first
func (s *ReconcileService) ListOpen(ctx context.Context) ([]models.ProvisioningIssue, error) {
	return s.issues.ListOpenIssues(ctx)
}

type issueExport struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Email     string          `json:"email"`
	Role      string          `json:"role"`
	Stage     string          `json:"stage"`
	Detail    string          `json:"detail"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Export writes the open issues as a JSON array
func (s *ReconcileService) Export(ctx context.Context, w io.Writer) error {
	issues, err := s.issues.ListOpenIssues(ctx)
	if err != nil {
		return err
	}

	out := make([]issueExport, 0, len(issues))
	for _, issue := range issues {
		payload := json.RawMessage(issue.Payload)
		if !json.Valid(payload) {
			payload = json.RawMessage("null")
		}
		out = append(out, issueExport{
			ID:        issue.ID,
			AccountID: issue.AccountID,
			Email:     issue.Email,
			Role:      issue.Role,
			Stage:     issue.Stage,
			Detail:    issue.Detail,
			Payload:   payload,
			CreatedAt: issue.CreatedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}
	return nil
}

// Resolve writes the profiles missing for an issue's account, base profile
// first, and marks the issue resolved. Profiles that already exist count as
// written.
func (s *ReconcileService) Resolve(ctx context.Context, id string) error {
	issue, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	if issue == nil {
		return ErrIssueNotFound
	}
	if issue.IsResolved() {
		return ErrIssueResolved
	}

	var payload issuePayload
	if err := json.Unmarshal([]byte(issue.Payload), &payload); err != nil {
		return fmt.Errorf("failed to decode issue payload: %w", err)
	}
	if payload.Role != models.RoleStudent && payload.Role != models.RoleCounsellor {
		return fmt.Errorf("issue %s has unknown role %q", issue.ID, payload.Role)
	}
	if payload.Email == "" {
		payload.Email = issue.Email
	}

	now := time.Now().UTC()

	base, err := s.profiles.GetProfile(ctx, issue.AccountID)
	if err != nil {
		return err
	}
	if base == nil {
		err = s.profiles.CreateProfile(ctx, &models.Profile{
			ID:        issue.AccountID,
			FullName:  payload.FullName,
			Role:      payload.Role,
			Email:     payload.Email,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			return fmt.Errorf("failed to write base profile: %w", err)
		}
		s.logger.Info("base profile written", zap.String("account_id", issue.AccountID))
	}

	switch payload.Role {
	case models.RoleStudent:
		err = s.profiles.CreateStudentProfile(ctx, &models.StudentProfile{
			ID:        issue.AccountID,
			FullName:  payload.FullName,
			Age:       payload.Age,
			Grade:     payload.Grade,
			School:    payload.School,
			CreatedAt: now,
		})
	case models.RoleCounsellor:
		err = s.profiles.CreateCounsellorProfile(ctx, &models.CounsellorProfile{
			ID:        issue.AccountID,
			FullName:  payload.FullName,
			CreatedAt: now,
		})
	}
	if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
		return fmt.Errorf("failed to write role profile: %w", err)
	}

	if err := s.issues.MarkResolved(ctx, issue.ID, now); err != nil {
		return err
	}

	s.logger.Info("provisioning issue resolved",
		zap.String("issue_id", issue.ID),
		zap.String("account_id", issue.AccountID))
	return nil
}
