package models

import "time"

// Roles
const (
	RoleStudent    = "student"
	RoleCounsellor = "counsellor"
)

// Profile is the base profile row shared by every role. Its ID is the
// credential provider's account identifier.
type Profile struct {
	ID        string
	FullName  string
	Role      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StudentProfile extends Profile for students
type StudentProfile struct {
	ID        string
	FullName  string
	Age       int
	Grade     string
	School    string
	CreatedAt time.Time
}

// CounsellorProfile extends Profile for counsellors
type CounsellorProfile struct {
	ID        string
	FullName  string
	CreatedAt time.Time
}
