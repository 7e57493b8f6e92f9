package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"quad/internal/database"
	"quad/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestProfileRepositoryStudentLifecycle(t *testing.T) {
	repo := NewProfileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	base := &models.Profile{ID: "acct-1", FullName: "Jo", Role: models.RoleStudent, Email: "a@x.com", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateProfile(ctx, base); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	student := &models.StudentProfile{ID: "acct-1", FullName: "Jo", Age: 16, Grade: "10", School: "Hill", CreatedAt: now}
	if err := repo.CreateStudentProfile(ctx, student); err != nil {
		t.Fatalf("CreateStudentProfile() error = %v", err)
	}

	got, err := repo.GetStudentProfile(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetStudentProfile() error = %v", err)
	}
	if got == nil || got.Age != 16 || got.School != "Hill" {
		t.Errorf("GetStudentProfile() = %+v, want age 16 at Hill", got)
	}

	counsellor, err := repo.GetCounsellorProfile(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetCounsellorProfile() error = %v", err)
	}
	if counsellor != nil {
		t.Errorf("expected no counsellor profile, got %+v", counsellor)
	}
}

func TestProfileRepositoryDuplicateInsert(t *testing.T) {
	repo := NewProfileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	base := &models.Profile{ID: "acct-2", FullName: "Dr. Lee", Role: models.RoleCounsellor, Email: "lee@x.com", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateProfile(ctx, base); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if err := repo.CreateProfile(ctx, base); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second CreateProfile() error = %v, want ErrAlreadyExists", err)
	}

	cp := &models.CounsellorProfile{ID: "acct-2", FullName: "Dr. Lee", CreatedAt: now}
	if err := repo.CreateCounsellorProfile(ctx, cp); err != nil {
		t.Fatalf("CreateCounsellorProfile() error = %v", err)
	}
	if err := repo.CreateCounsellorProfile(ctx, cp); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second CreateCounsellorProfile() error = %v, want ErrAlreadyExists", err)
	}
}

func TestProfileRepositoryRejectsOutOfRangeAge(t *testing.T) {
	repo := NewProfileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	base := &models.Profile{ID: "acct-3", FullName: "Kid", Role: models.RoleStudent, Email: "k@x.com", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateProfile(ctx, base); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	err := repo.CreateStudentProfile(ctx, &models.StudentProfile{ID: "acct-3", FullName: "Kid", Age: 2, Grade: "1", School: "Hill", CreatedAt: now})
	if err == nil {
		t.Fatal("expected check constraint failure for age 2")
	}
	if errors.Is(err, ErrAlreadyExists) {
		t.Error("check constraint failure reported as ErrAlreadyExists")
	}
}

func TestGetProfileNotFound(t *testing.T) {
	repo := NewProfileRepository(newTestDB(t))

	got, err := repo.GetProfile(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetProfile() = %+v, want nil", got)
	}
}

func TestAccountRepositoryCreateAndLookup(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	account := &models.Account{
		ID:           "acct-10",
		Email:        "a@x.com",
		PasswordHash: "hash",
		FullName:     "Jo",
		Role:         models.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	token := &models.OneTimeToken{
		TokenHash: "tok-hash",
		AccountID: "acct-10",
		TokenType: models.TokenTypeSignup,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := repo.CreateAccount(ctx, account, token); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	got, err := repo.GetAccountByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail() error = %v", err)
	}
	if got == nil || got.Role != models.RoleStudent || got.FullName != "Jo" {
		t.Fatalf("GetAccountByEmail() = %+v, want student Jo", got)
	}
	if got.IsConfirmed() {
		t.Error("new account should not be confirmed")
	}

	dup := *account
	dup.ID = "acct-11"
	if err := repo.CreateAccount(ctx, &dup, nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate email CreateAccount() error = %v, want ErrAlreadyExists", err)
	}

	if err := repo.ConfirmAccount(ctx, "acct-10", now); err != nil {
		t.Fatalf("ConfirmAccount() error = %v", err)
	}
	got, _ = repo.GetAccountByID(ctx, "acct-10")
	if got == nil || !got.IsConfirmed() {
		t.Error("account should be confirmed")
	}
}

func TestAccountRepositoryTokenConsumedOnce(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	account := &models.Account{ID: "acct-20", Email: "b@x.com", PasswordHash: "hash", Role: models.RoleCounsellor, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateAccount(ctx, account, nil); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	token := &models.OneTimeToken{TokenHash: "h", AccountID: "acct-20", TokenType: models.TokenTypeRecovery, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	if err := repo.CreateToken(ctx, token); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	if err := repo.MarkTokenUsed(ctx, "h", now); err != nil {
		t.Fatalf("MarkTokenUsed() error = %v", err)
	}
	if err := repo.MarkTokenUsed(ctx, "h", now); !errors.Is(err, ErrTokenConsumed) {
		t.Errorf("second MarkTokenUsed() error = %v, want ErrTokenConsumed", err)
	}

	got, err := repo.GetToken(ctx, "h")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if got == nil || got.IsUsable() {
		t.Errorf("GetToken() = %+v, want a used token", got)
	}
}

func TestAccountRepositorySessions(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	account := &models.Account{ID: "acct-30", Email: "c@x.com", PasswordHash: "hash", Role: models.RoleStudent, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateAccount(ctx, account, nil); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if _, err := repo.CreateSession(ctx, "s-1", "acct-30", now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := repo.CreateSession(ctx, "s-2", "acct-30", now.Add(-time.Hour)); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := repo.DeleteExpiredSessions(ctx); err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if s, _ := repo.GetSession(ctx, "s-2"); s != nil {
		t.Error("expired session should have been removed")
	}

	if err := repo.DeleteAccountSessions(ctx, "acct-30"); err != nil {
		t.Fatalf("DeleteAccountSessions() error = %v", err)
	}
	if s, _ := repo.GetSession(ctx, "s-1"); s != nil {
		t.Error("account sessions should have been removed")
	}
}

func TestIssueRepository(t *testing.T) {
	repo := NewIssueRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	issue := &models.ProvisioningIssue{
		ID:        "issue-1",
		AccountID: "acct-1",
		Email:     "a@x.com",
		Role:      models.RoleStudent,
		Stage:     models.StageRoleProfile,
		Detail:    "boom",
		Payload:   `{"age":16}`,
		CreatedAt: now,
	}
	if err := repo.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	open, err := repo.ListOpenIssues(ctx)
	if err != nil {
		t.Fatalf("ListOpenIssues() error = %v", err)
	}
	if len(open) != 1 || open[0].AccountID != "acct-1" {
		t.Fatalf("ListOpenIssues() = %+v, want one issue for acct-1", open)
	}

	if err := repo.MarkResolved(ctx, "issue-1", now); err != nil {
		t.Fatalf("MarkResolved() error = %v", err)
	}
	open, _ = repo.ListOpenIssues(ctx)
	if len(open) != 0 {
		t.Errorf("expected no open issues after resolve, got %d", len(open))
	}

	got, err := repo.GetIssue(ctx, "issue-1")
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if got == nil || !got.IsResolved() {
		t.Errorf("GetIssue() = %+v, want resolved issue", got)
	}
}
