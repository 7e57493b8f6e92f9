package models

import "time"

// Provisioning stages that can leave an account partially provisioned
const (
	StageBaseProfile = "base_profile"
	StageRoleProfile = "role_profile"
)

// ProvisioningIssue records an account whose sign-up stopped after the
// account was created. Payload holds the JSON encoded profile fields that
// still need to be written.
type ProvisioningIssue struct {
	ID         string
	AccountID  string
	Email      string
	Role       string
	Stage      string
	Detail     string
	Payload    string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// IsResolved reports whether the issue has been reconciled
func (i *ProvisioningIssue) IsResolved() bool {
	return i.ResolvedAt != nil
}
