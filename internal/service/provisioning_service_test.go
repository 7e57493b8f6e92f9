package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/database"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/signup"
)

type provisioningFixture struct {
	db       *database.DB
	provider *fakeProvider
	profiles *failingProfiles
	issues   *repository.IssueRepository
	svc      *ProvisioningService
}

func newProvisioningFixture(t *testing.T) *provisioningFixture {
	t.Helper()
	db := newTestDB(t)
	f := &provisioningFixture{
		db:       db,
		provider: newFakeProvider(),
		profiles: &failingProfiles{ProfileRepository: repository.NewProfileRepository(db)},
		issues:   repository.NewIssueRepository(db),
	}
	f.svc = NewProvisioningService(f.provider, f.profiles, f.issues, "http://quad.test/auth/confirm", zap.NewNop())
	return f
}

func studentForm() signup.Form {
	return signup.Form{
		Email:    "a@x.com",
		Password: "secret1",
		FullName: "Jo",
		Role:     "student",
		Age:      "16",
		Grade:    "10",
		School:   "Hill",
	}
}

func counsellorForm() signup.Form {
	return signup.Form{
		Email:    "lee@x.com",
		Password: "secret1",
		FullName: "Dr. Lee",
		Role:     "counsellor",
	}
}

func TestSignUpStudentSucceeds(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()

	outcome := f.svc.SignUp(ctx, studentForm())

	if outcome.IsError() {
		t.Fatalf("SignUp() = %+v, want success", outcome)
	}
	if outcome.RedirectPath != PathSignIn || outcome.Message != MsgSignUpSuccess {
		t.Errorf("outcome = %+v", outcome)
	}

	if n := countRows(t, f.db, "profiles"); n != 1 {
		t.Errorf("profiles rows = %d, want 1", n)
	}
	if n := countRows(t, f.db, "student_profiles"); n != 1 {
		t.Errorf("student_profiles rows = %d, want 1", n)
	}
	if n := countRows(t, f.db, "counsellor_profiles"); n != 0 {
		t.Errorf("counsellor_profiles rows = %d, want 0", n)
	}

	student, err := f.profiles.GetStudentProfile(ctx, "user-a@x.com")
	if err != nil || student == nil {
		t.Fatalf("GetStudentProfile() = %v, %v", student, err)
	}
	if student.Age != 16 {
		t.Errorf("Age = %d, want 16", student.Age)
	}

	base, err := f.profiles.GetProfile(ctx, "user-a@x.com")
	if err != nil || base == nil || base.Role != "student" {
		t.Errorf("GetProfile() = %+v, %v", base, err)
	}

	account := f.provider.accounts["a@x.com"]
	if account.Metadata.Role != "student" || account.Metadata.FullName != "Jo" {
		t.Errorf("metadata sent = %+v", account.Metadata)
	}
}

func TestSignUpOutOfRangeAgeMakesNoCalls(t *testing.T) {
	f := newProvisioningFixture(t)
	form := studentForm()
	form.Age = "2"

	outcome := f.svc.SignUp(context.Background(), form)

	if !outcome.IsError() || outcome.Class != ClassValidation {
		t.Fatalf("outcome = %+v, want validation error", outcome)
	}
	if !strings.HasPrefix(outcome.Message, "Age must be between 5 and 22") {
		t.Errorf("Message = %q", outcome.Message)
	}
	if outcome.RedirectPath != PathSignUp {
		t.Errorf("RedirectPath = %q, want %q", outcome.RedirectPath, PathSignUp)
	}
	if len(f.provider.calls) != 0 {
		t.Errorf("provider calls = %v, want none", f.provider.calls)
	}
	if n := countRows(t, f.db, "profiles"); n != 0 {
		t.Errorf("profiles rows = %d, want 0", n)
	}
}

func TestSignUpCounsellorSucceeds(t *testing.T) {
	f := newProvisioningFixture(t)

	outcome := f.svc.SignUp(context.Background(), counsellorForm())

	if outcome.IsError() {
		t.Fatalf("SignUp() = %+v, want success", outcome)
	}
	if n := countRows(t, f.db, "counsellor_profiles"); n != 1 {
		t.Errorf("counsellor_profiles rows = %d, want 1", n)
	}
	if n := countRows(t, f.db, "student_profiles"); n != 0 {
		t.Errorf("student_profiles rows = %d, want 0", n)
	}
}

func TestSignUpStudentProfileFailureIsFlagged(t *testing.T) {
	f := newProvisioningFixture(t)
	f.profiles.studentErr = errors.New("permission denied for table student_profiles")
	ctx := context.Background()

	outcome := f.svc.SignUp(ctx, studentForm())

	if !outcome.IsError() {
		t.Fatalf("SignUp() = %+v, want error", outcome)
	}
	if outcome.Message != "Student profile creation failed: permission denied for table student_profiles" {
		t.Errorf("Message = %q", outcome.Message)
	}
	if outcome.Class != ClassPartialProvisioning || !outcome.Flagged {
		t.Errorf("outcome = %+v, want flagged partial provisioning", outcome)
	}

	if n := countRows(t, f.db, "profiles"); n != 1 {
		t.Errorf("profiles rows = %d, want base profile kept", n)
	}
	if f.provider.callCount("SignOut") != 0 {
		t.Error("role profile failure should not sign out")
	}

	issues, err := f.issues.ListOpenIssues(ctx)
	if err != nil {
		t.Fatalf("ListOpenIssues() error = %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("open issues = %d, want 1", len(issues))
	}
	issue := issues[0]
	if issue.AccountID != "user-a@x.com" || issue.Role != "student" {
		t.Errorf("issue = %+v", issue)
	}
	if !strings.Contains(issue.Payload, `"age":16`) || !strings.Contains(issue.Payload, `"school":"Hill"`) {
		t.Errorf("payload = %s", issue.Payload)
	}
}

func TestSignUpCounsellorProfileFailureMessage(t *testing.T) {
	f := newProvisioningFixture(t)
	f.profiles.counsellorErr = errors.New("timeout")

	outcome := f.svc.SignUp(context.Background(), counsellorForm())

	if outcome.Message != "Counsellor profile creation failed: timeout" {
		t.Errorf("Message = %q", outcome.Message)
	}
	if !outcome.Flagged {
		t.Error("outcome should be flagged")
	}
}

func TestSignUpBaseProfileFailureCompensates(t *testing.T) {
	tests := []struct {
		name       string
		autoSignIn bool
		wantToken  string
	}{
		{name: "unconfirmed account", autoSignIn: false, wantToken: ""},
		{name: "account with session", autoSignIn: true, wantToken: "token-a@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProvisioningFixture(t)
			f.provider.autoSignIn = tt.autoSignIn
			f.profiles.baseErr = errors.New("duplicate key value violates check")

			outcome := f.svc.SignUp(context.Background(), studentForm())

			if outcome.Class != ClassProfileWrite {
				t.Errorf("Class = %q, want profile_write", outcome.Class)
			}
			if outcome.Message != "Profile creation failed: duplicate key value violates check" {
				t.Errorf("Message = %q", outcome.Message)
			}
			if f.provider.callCount("SignOut") != 1 {
				t.Fatalf("SignOut calls = %d, want 1", f.provider.callCount("SignOut"))
			}
			if f.provider.signedOut[0] != tt.wantToken {
				t.Errorf("signed out %q, want %q", f.provider.signedOut[0], tt.wantToken)
			}
			if n := countRows(t, f.db, "student_profiles"); n != 0 {
				t.Errorf("student_profiles rows = %d, want 0", n)
			}
		})
	}
}

func TestSignUpBaseProfileFailureIsFlagged(t *testing.T) {
	f := newProvisioningFixture(t)
	f.profiles.baseErr = errors.New("too many connections")
	ctx := context.Background()

	outcome := f.svc.SignUp(ctx, studentForm())

	if !outcome.Flagged {
		t.Error("outcome should be flagged")
	}
	issues, err := f.issues.ListOpenIssues(ctx)
	if err != nil {
		t.Fatalf("ListOpenIssues() error = %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("open issues = %d, want 1", len(issues))
	}
	issue := issues[0]
	if issue.Stage != models.StageBaseProfile || issue.AccountID != "user-a@x.com" {
		t.Errorf("issue = %+v, want base_profile issue for user-a@x.com", issue)
	}
	if issue.Detail != "too many connections" {
		t.Errorf("Detail = %q", issue.Detail)
	}
	for _, want := range []string{`"email":"a@x.com"`, `"full_name":"Jo"`, `"age":16`} {
		if !strings.Contains(issue.Payload, want) {
			t.Errorf("Payload %s missing %s", issue.Payload, want)
		}
	}

	// The provider still holds the account, so a resubmission is refused
	again := f.svc.SignUp(ctx, studentForm())
	if again.Message != "User already registered" {
		t.Errorf("resubmit Message = %q", again.Message)
	}
}

func TestSignUpProviderFailureWritesNothing(t *testing.T) {
	f := newProvisioningFixture(t)
	f.provider.signUpErr = auth.ErrorInvalidInput("Signups not allowed for this instance")

	outcome := f.svc.SignUp(context.Background(), studentForm())

	if outcome.Class != ClassCredentialProvider || outcome.Message != "Signups not allowed for this instance" {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.RedirectPath != PathSignUp {
		t.Errorf("RedirectPath = %q", outcome.RedirectPath)
	}
	for _, table := range []string{"profiles", "student_profiles", "counsellor_profiles"} {
		if n := countRows(t, f.db, table); n != 0 {
			t.Errorf("%s rows = %d, want 0", table, n)
		}
	}
}

func TestSignUpMissingAccountID(t *testing.T) {
	f := newProvisioningFixture(t)
	f.provider.omitID = true

	outcome := f.svc.SignUp(context.Background(), studentForm())

	if outcome.Message != MsgFailedToCreate {
		t.Errorf("Message = %q, want %q", outcome.Message, MsgFailedToCreate)
	}
	if n := countRows(t, f.db, "profiles"); n != 0 {
		t.Errorf("profiles rows = %d, want 0", n)
	}
}

func TestSignUpTwiceIsRejectedByProvider(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()

	if first := f.svc.SignUp(ctx, studentForm()); first.IsError() {
		t.Fatalf("first SignUp() = %+v", first)
	}
	second := f.svc.SignUp(ctx, studentForm())

	if second.Class != ClassCredentialProvider || second.Message != "User already registered" {
		t.Errorf("second SignUp() = %+v, want duplicate email error", second)
	}
	if n := countRows(t, f.db, "profiles"); n != 1 {
		t.Errorf("profiles rows = %d, want 1", n)
	}
	if n := countRows(t, f.db, "student_profiles"); n != 1 {
		t.Errorf("student_profiles rows = %d, want 1", n)
	}
}

func TestProvisionTreatsExistingProfilesAsDone(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()

	req, err := signup.Validate(studentForm())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if outcome := f.svc.Provision(ctx, req); outcome.IsError() {
		t.Fatalf("Provision() = %+v", outcome)
	}

	// The provider hands back the same account again, as a retried callback might
	delete(f.provider.accounts, req.Email)
	outcome := f.svc.Provision(ctx, req)

	if outcome.IsError() {
		t.Fatalf("second Provision() = %+v, want success", outcome)
	}
	if f.provider.callCount("SignOut") != 0 {
		t.Error("existing base profile should not trigger compensation")
	}
	if n := countRows(t, f.db, "student_profiles"); n != 1 {
		t.Errorf("student_profiles rows = %d, want 1", n)
	}
}

func TestErrorDetailUnwraps(t *testing.T) {
	err := errors.New("constraint failed")
	chained := &StageError{Stage: "x", Message: "m", Err: err}
	if got := errorDetail(chained); got != "constraint failed" {
		t.Errorf("errorDetail() = %q, want innermost message", got)
	}
}
