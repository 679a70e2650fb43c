package models

import (
	"fmt"
	"time"
)

// Role identifies which side of the platform an account belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a string into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Account is a single credentialed (identifier, role) entity.
// The same identifier may own at most one account per role.
type Account struct {
	ID               string
	Identifier       string // normalized phone or email
	Role             Role
	CredentialHash   string
	DisplayName      string
	AdminProvisioned bool // drivers only: set when the account was created by an administrator
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LoginEligible reports whether the account may authenticate at all.
// Self-registered driver accounts are never eligible.
func (a *Account) LoginEligible() bool {
	return a.Role != RoleDriver || a.AdminProvisioned
}
