package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/signup"
)

// Sign-up messages
const (
	MsgSignUpSuccess       = "Thanks for signing up! Please check your email for a verification link."
	MsgFailedToCreate      = "Failed to create account."
	MsgUnexpectedError     = "An unexpected error occurred"
	prefixProfileFailed    = "Profile creation failed: "
	prefixStudentFailed    = "Student profile creation failed: "
	prefixCounsellorFailed = "Counsellor profile creation failed: "
)

// ProfileStore writes the base and role profile rows
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	CreateStudentProfile(ctx context.Context, sp *models.StudentProfile) error
	CreateCounsellorProfile(ctx context.Context, cp *models.CounsellorProfile) error
}

// IssueRecorder keeps accounts that need reconciliation
type IssueRecorder interface {
	CreateIssue(ctx context.Context, issue *models.ProvisioningIssue) error
}

// StageError stops the sign-up pipeline. Message is shown to the user.
type StageError struct {
	Stage   string
	Class   ErrorClass
	Message string
	Flagged bool
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// provisioning is the state handed from one stage to the next
type provisioning struct {
	req     *signup.Request
	account *auth.Account
	now     time.Time
}

type stage struct {
	name string
	run  func(ctx context.Context, p *provisioning) error
}

// ProvisioningService signs up new users: it creates the account with the
// credential provider, then the base profile, then the role profile
type ProvisioningService struct {
	provider    auth.Provider
	profiles    ProfileStore
	issues      IssueRecorder
	redirectURL string
	logger      *zap.Logger
	now         func() time.Time
}

// NewProvisioningService creates a provisioning service. redirectURL is
// where the email verification link lands.
func NewProvisioningService(provider auth.Provider, profiles ProfileStore, issues IssueRecorder, redirectURL string, logger *zap.Logger) *ProvisioningService {
	return &ProvisioningService{
		provider:    provider,
		profiles:    profiles,
		issues:      issues,
		redirectURL: redirectURL,
		logger:      logger.Named("provisioning"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SignUp validates a submitted form and provisions the account it describes.
// Invalid forms return before the credential provider is called.
func (s *ProvisioningService) SignUp(ctx context.Context, form signup.Form) Outcome {
	req, err := signup.Validate(form)
	if err != nil {
		var verr *signup.ValidationError
		if errors.As(err, &verr) {
			s.logger.Debug("sign-up rejected", zap.String("reason", verr.Message))
			return Failure(ClassValidation, PathSignUp, verr.Message)
		}
		return Failure(ClassValidation, PathSignUp, MsgUnexpectedError)
	}
	return s.Provision(ctx, req)
}

// Provision runs the sign-up stages in order. The first failing stage ends
// the request with its error outcome.
func (s *ProvisioningService) Provision(ctx context.Context, req *signup.Request) Outcome {
	p := &provisioning{req: req, now: s.now()}
	log := s.logger.With(zap.String("role", string(req.Role())))

	stages := []stage{
		{name: "create_account", run: s.createAccount},
		{name: models.StageBaseProfile, run: s.createBaseProfile},
		{name: models.StageRoleProfile, run: s.createRoleProfile},
	}

	for _, st := range stages {
		if err := st.run(ctx, p); err != nil {
			var serr *StageError
			if !errors.As(err, &serr) {
				serr = &StageError{Stage: st.name, Class: ClassProfileWrite, Message: MsgUnexpectedError, Err: err}
			}
			log.Warn("sign-up stopped",
				zap.String("stage", serr.Stage),
				zap.String("class", string(serr.Class)),
				zap.Bool("flagged", serr.Flagged),
				zap.Error(err))

			outcome := Failure(serr.Class, PathSignUp, serr.Message)
			outcome.Flagged = serr.Flagged
			return outcome
		}
		log.Debug("sign-up stage complete", zap.String("stage", st.name))
	}

	log.Info("sign-up complete", zap.String("account_id", p.account.ID))
	return Success(PathSignIn, MsgSignUpSuccess)
}

func (s *ProvisioningService) createAccount(ctx context.Context, p *provisioning) error {
	account, err := s.provider.SignUp(ctx, auth.SignUpParams{
		Email:           p.req.Email,
		Password:        p.req.Password,
		EmailRedirectTo: s.redirectURL,
		Metadata: auth.Metadata{
			FullName: p.req.FullName,
			Role:     string(p.req.Role()),
		},
	})
	if err != nil {
		return &StageError{Stage: "create_account", Class: ClassCredentialProvider, Message: auth.Message(err), Err: err}
	}
	if account == nil || account.ID == "" {
		return &StageError{Stage: "create_account", Class: ClassCredentialProvider, Message: MsgFailedToCreate}
	}

	p.account = account
	return nil
}

func (s *ProvisioningService) createBaseProfile(ctx context.Context, p *provisioning) error {
	err := s.profiles.CreateProfile(ctx, &models.Profile{
		ID:        p.account.ID,
		FullName:  p.req.FullName,
		Role:      string(p.req.Role()),
		Email:     p.req.Email,
		CreatedAt: p.now,
		UpdatedAt: p.now,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		s.logger.Info("base profile already exists", zap.String("account_id", p.account.ID))
		return nil
	}
	if err == nil {
		return nil
	}

	// Revoke whatever access the new account has before giving up
	var token string
	if p.account.Session != nil {
		token = p.account.Session.AccessToken
	}
	if signOutErr := s.provider.SignOut(ctx, token); signOutErr != nil {
		s.logger.Error("compensating sign-out failed", zap.String("account_id", p.account.ID), zap.Error(signOutErr))
	}

	// The account itself stays with the provider and its email stays taken
	s.flag(ctx, p, models.StageBaseProfile, err)
	return &StageError{
		Stage:   models.StageBaseProfile,
		Class:   ClassProfileWrite,
		Message: prefixProfileFailed + errorDetail(err),
		Flagged: true,
		Err:     err,
	}
}

// issuePayload is the JSON recorded for reconciliation: every profile field
// of the request, enough to write both the base and the role profile
type issuePayload struct {
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Age      int    `json:"age,omitempty"`
	Grade    string `json:"grade,omitempty"`
	School   string `json:"school,omitempty"`
}

func payloadFor(req *signup.Request) issuePayload {
	payload := issuePayload{Role: string(req.Role()), FullName: req.FullName, Email: req.Email}
	if student, ok := req.Details.(signup.Student); ok {
		payload.Age, payload.Grade, payload.School = student.Age, student.Grade, student.School
	}
	return payload
}

func (s *ProvisioningService) createRoleProfile(ctx context.Context, p *provisioning) error {
	var err error
	var prefix string

	switch details := p.req.Details.(type) {
	case signup.Student:
		prefix = prefixStudentFailed
		err = s.profiles.CreateStudentProfile(ctx, &models.StudentProfile{
			ID:        p.account.ID,
			FullName:  p.req.FullName,
			Age:       details.Age,
			Grade:     details.Grade,
			School:    details.School,
			CreatedAt: p.now,
		})
	case signup.Counsellor:
		prefix = prefixCounsellorFailed
		err = s.profiles.CreateCounsellorProfile(ctx, &models.CounsellorProfile{
			ID:        p.account.ID,
			FullName:  p.req.FullName,
			CreatedAt: p.now,
		})
	default:
		return &StageError{Stage: models.StageRoleProfile, Class: ClassValidation, Message: signup.MsgInvalidRole}
	}

	if errors.Is(err, repository.ErrAlreadyExists) {
		s.logger.Info("role profile already exists", zap.String("account_id", p.account.ID))
		return nil
	}
	if err == nil {
		return nil
	}

	// The account and base profile stay. Record the gap for reconciliation.
	s.flag(ctx, p, models.StageRoleProfile, err)
	return &StageError{
		Stage:   models.StageRoleProfile,
		Class:   ClassPartialProvisioning,
		Message: prefix + errorDetail(err),
		Flagged: true,
		Err:     err,
	}
}

func (s *ProvisioningService) flag(ctx context.Context, p *provisioning, stage string, cause error) {
	log := s.logger.With(zap.String("account_id", p.account.ID), zap.String("stage", stage))

	data, err := json.Marshal(payloadFor(p.req))
	if err != nil {
		log.Error("failed to encode provisioning issue payload", zap.Error(err))
		return
	}

	issue := &models.ProvisioningIssue{
		ID:        uuid.NewString(),
		AccountID: p.account.ID,
		Email:     p.req.Email,
		Role:      string(p.req.Role()),
		Stage:     stage,
		Detail:    errorDetail(cause),
		Payload:   string(data),
		CreatedAt: p.now,
	}
	if s.issues == nil {
		log.Error("account left partially provisioned", zap.String("payload", issue.Payload))
		return
	}
	if err := s.issues.CreateIssue(ctx, issue); err != nil {
		log.Error("failed to record provisioning issue", zap.String("payload", issue.Payload), zap.Error(err))
		return
	}
	log.Warn("account flagged for reconciliation", zap.String("issue_id", issue.ID))
}

// errorDetail is the innermost message of a store error, the part worth
// showing after a step prefix
func errorDetail(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error"
}
