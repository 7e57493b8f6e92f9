package signup

import (
	"errors"
	"net/url"
	"testing"
)

func validStudent() Form {
	return Form{
		Email:    "a@x.com",
		Password: "secret1",
		FullName: "Jo",
		Role:     "student",
		Age:      "16",
		Grade:    "10",
		School:   "Hill",
	}
}

func TestFromValuesTrimsEverythingButPassword(t *testing.T) {
	values := url.Values{
		FieldEmail:    {"  a@x.com "},
		FieldPassword: {" secret1 "},
		FieldFullName: {" Jo "},
		FieldRole:     {" student"},
		FieldAge:      {" 16 "},
		FieldGrade:    {"10 "},
		FieldSchool:   {" Hill"},
	}

	got := FromValues(values)
	want := Form{
		Email:    "a@x.com",
		Password: " secret1 ",
		FullName: "Jo",
		Role:     "student",
		Age:      "16",
		Grade:    "10",
		School:   "Hill",
	}
	if got != want {
		t.Errorf("FromValues() = %+v, want %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(f *Form)
		wantMsg string
	}{
		{name: "missing email", modify: func(f *Form) { f.Email = "" }, wantMsg: MsgAllFieldsRequired},
		{name: "missing password", modify: func(f *Form) { f.Password = "" }, wantMsg: MsgAllFieldsRequired},
		{name: "missing full name", modify: func(f *Form) { f.FullName = "" }, wantMsg: MsgAllFieldsRequired},
		{name: "missing role", modify: func(f *Form) { f.Role = "" }, wantMsg: MsgAllFieldsRequired},
		{name: "unknown role", modify: func(f *Form) { f.Role = "admin" }, wantMsg: MsgInvalidRole},
		{name: "role is case sensitive", modify: func(f *Form) { f.Role = "Student" }, wantMsg: MsgInvalidRole},
		{name: "short password", modify: func(f *Form) { f.Password = "abc12" }, wantMsg: MsgPasswordTooShort},
		{name: "missing age", modify: func(f *Form) { f.Age = "" }, wantMsg: MsgStudentFieldsRequired},
		{name: "missing grade", modify: func(f *Form) { f.Grade = "" }, wantMsg: MsgStudentFieldsRequired},
		{name: "missing school", modify: func(f *Form) { f.School = "" }, wantMsg: MsgStudentFieldsRequired},
		{name: "age too low", modify: func(f *Form) { f.Age = "2" }, wantMsg: MsgAgeOutOfRange},
		{name: "age too high", modify: func(f *Form) { f.Age = "23" }, wantMsg: MsgAgeOutOfRange},
		{name: "age not a number", modify: func(f *Form) { f.Age = "sixteen" }, wantMsg: MsgAgeOutOfRange},
		{name: "age fractional", modify: func(f *Form) { f.Age = "16.5" }, wantMsg: MsgAgeOutOfRange},
		{name: "lower bound", modify: func(f *Form) { f.Age = "5" }},
		{name: "upper bound", modify: func(f *Form) { f.Age = "22" }},
		{name: "valid student", modify: func(f *Form) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validStudent()
			tt.modify(&form)

			req, err := Validate(form)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if req.Role() != RoleStudent {
					t.Errorf("Role() = %q, want student", req.Role())
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", verr.Message, tt.wantMsg)
			}
			if req != nil {
				t.Error("Validate() should not return a request on failure")
			}
		})
	}
}

func TestValidateStopsAtFirstViolation(t *testing.T) {
	form := Form{Role: "admin", Password: "x"}

	_, err := Validate(form)
	if err == nil || err.Error() != MsgAllFieldsRequired {
		t.Errorf("Validate() error = %v, want %q", err, MsgAllFieldsRequired)
	}
}

func TestValidateStudentDetails(t *testing.T) {
	req, err := Validate(validStudent())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	student, ok := req.Details.(Student)
	if !ok {
		t.Fatalf("Details = %T, want Student", req.Details)
	}
	if student.Age != 16 || student.Grade != "10" || student.School != "Hill" {
		t.Errorf("Student = %+v", student)
	}
}

func TestValidateCounsellorIgnoresStudentFields(t *testing.T) {
	form := Form{
		Email:    "lee@x.com",
		Password: "secret1",
		FullName: "Dr. Lee",
		Role:     "counsellor",
		Age:      "99",
	}

	req, err := Validate(form)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, ok := req.Details.(Counsellor); !ok {
		t.Errorf("Details = %T, want Counsellor", req.Details)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	form := validStudent()
	form.Age = "30"

	_, first := Validate(form)
	_, second := Validate(form)
	if first.Error() != second.Error() {
		t.Errorf("verdicts differ: %q vs %q", first, second)
	}
}

func TestNormalize(t *testing.T) {
	got := Form{Email: " a@x.com ", Password: " p ", Role: " counsellor "}.Normalize()
	if got.Email != "a@x.com" || got.Password != " p " || got.Role != "counsellor" {
		t.Errorf("Normalize() = %+v", got)
	}
}
