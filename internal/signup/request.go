package signup

import "quad/internal/models"

// Role is the account role chosen on the sign-up form
type Role string

// Roles accepted by the sign-up flow
const (
	RoleStudent    Role = models.RoleStudent
	RoleCounsellor Role = models.RoleCounsellor
)

// ParseRole coerces a raw form value into a Role. Only exact matches count.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleStudent, RoleCounsellor:
		return Role(raw), true
	}
	return "", false
}

// Details is the role specific part of a sign-up request. It is either
// Student or Counsellor.
type Details interface {
	Role() Role
}

// Student carries the fields only students provide
type Student struct {
	Age    int
	Grade  string
	School string
}

// Role implements Details
func (Student) Role() Role { return RoleStudent }

// Counsellor has no fields beyond the base request
type Counsellor struct{}

// Role implements Details
func (Counsellor) Role() Role { return RoleCounsellor }

// Request is a validated sign-up submission
type Request struct {
	Email    string
	Password string
	FullName string
	Details  Details
}

// Role returns the role selected by the request's details
func (r *Request) Role() Role {
	return r.Details.Role()
}
