package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"quad/internal/auth"
	"quad/internal/database"
	"quad/internal/models"
	"quad/internal/repository"
)

// fakeProvider is an in-memory credential provider that records calls
type fakeProvider struct {
	mu sync.Mutex

	accounts map[string]*auth.Account // by email
	sessions map[string]*auth.User    // by access token
	calls    []string

	signUpErr  error
	omitID     bool
	autoSignIn bool

	signInErr    error
	resetErr     error
	updateErr    error
	verifyErr    error
	signedOut    []string
	resetEmails  []string
	resetTargets []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: make(map[string]*auth.Account),
		sessions: make(map[string]*auth.User),
	}
}

func (f *fakeProvider) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeProvider) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeProvider) SignUp(_ context.Context, params auth.SignUpParams) (*auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignUp")

	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if _, taken := f.accounts[params.Email]; taken {
		return nil, auth.ErrorEmailTaken()
	}
	if f.omitID {
		return &auth.Account{}, nil
	}

	account := &auth.Account{User: auth.User{
		ID:       "user-" + params.Email,
		Email:    params.Email,
		Metadata: params.Metadata,
	}}
	if f.autoSignIn {
		token := "token-" + params.Email
		account.Session = &auth.Session{AccessToken: token}
		user := account.User
		f.sessions[token] = &user
	}
	f.accounts[params.Email] = account
	return account, nil
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, _ string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignInWithPassword")

	if f.signInErr != nil {
		return nil, f.signInErr
	}
	account, ok := f.accounts[email]
	if !ok {
		return nil, auth.ErrorInvalidCredentials()
	}
	token := "token-" + email
	user := account.User
	f.sessions[token] = &user
	return &auth.Session{AccessToken: token}, nil
}

func (f *fakeProvider) GetUser(_ context.Context, accessToken string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetUser")

	user, ok := f.sessions[accessToken]
	if !ok {
		return nil, auth.ErrorUnauthorized()
	}
	return user, nil
}

func (f *fakeProvider) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ResetPasswordForEmail")
	f.resetEmails = append(f.resetEmails, email)
	f.resetTargets = append(f.resetTargets, redirectTo)
	return f.resetErr
}

func (f *fakeProvider) UpdatePassword(_ context.Context, accessToken, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdatePassword")
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.sessions[accessToken]; !ok {
		return auth.ErrorUnauthorized()
	}
	return nil
}

func (f *fakeProvider) SignOut(_ context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignOut")
	f.signedOut = append(f.signedOut, accessToken)
	delete(f.sessions, accessToken)
	return nil
}

func (f *fakeProvider) VerifyOTP(_ context.Context, tokenHash, otpType string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("VerifyOTP")
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	token := "otp-" + tokenHash
	f.sessions[token] = &auth.User{ID: "user-otp", Metadata: auth.Metadata{Role: models.RoleCounsellor}}
	return &auth.Session{AccessToken: token}, nil
}

// failingProfiles wraps a real profile store and fails chosen inserts
type failingProfiles struct {
	*repository.ProfileRepository
	baseErr       error
	studentErr    error
	counsellorErr error
}

func (f *failingProfiles) CreateProfile(ctx context.Context, p *models.Profile) error {
	if f.baseErr != nil {
		return f.baseErr
	}
	return f.ProfileRepository.CreateProfile(ctx, p)
}

func (f *failingProfiles) CreateStudentProfile(ctx context.Context, sp *models.StudentProfile) error {
	if f.studentErr != nil {
		return f.studentErr
	}
	return f.ProfileRepository.CreateStudentProfile(ctx, sp)
}

func (f *failingProfiles) CreateCounsellorProfile(ctx context.Context, cp *models.CounsellorProfile) error {
	if f.counsellorErr != nil {
		return f.counsellorErr
	}
	return f.ProfileRepository.CreateCounsellorProfile(ctx, cp)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "service_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func countRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
