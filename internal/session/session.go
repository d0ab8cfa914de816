// Package session owns the signed-in state of the console: the access token,
// the remembered credentials and the current user profile.
package session

import (
	"errors"
	"strings"
)

// Role is one of the fixed roles the payroll API assigns.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Roles lists every known role, most privileged first.
var Roles = []Role{RoleAdmin, RoleHR, RoleManager, RoleEmployee}

// Known reports whether r is one of Roles.
func (r Role) Known() bool {
	for _, k := range Roles {
		if r == k {
			return true
		}
	}
	return false
}

// LowestPrivilege reports whether r is the least privileged role.
func (r Role) LowestPrivilege() bool {
	return r == RoleEmployee
}

// Profile is a snapshot of the current user as returned by the API.
// It is replaced whole, never edited in place.
type Profile struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	EmployeeID *int   `json:"employee_id,omitempty"`
	Role       Role   `json:"role"`
	IsActive   bool   `json:"is_active"`
	LastLogin  string `json:"last_login,omitempty"`
}

// DisplayName returns the name to show for the user.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.Username); name != "" {
		return name
	}
	return "unknown user"
}

// Validate rejects a profile without a username, which the API never
// returns for a real account.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return errors.New("profile has no username")
	}
	return nil
}

// Snapshot is a read-only view of the whole session.
type Snapshot struct {
	Token       string
	Profile     *Profile
	Username    string
	HasPassword bool
}
