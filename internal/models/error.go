package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("account not found")
	ErrConflict           = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrCollaborator       = errors.New("collaborator failure")
	ErrInternalServer     = errors.New("internal server error")

	// ErrRoleIneligible carries the fixed, user-facing message for the
	// driver provisioning rule. It is distinct from ErrNotFound so callers
	// can present a different message.
	ErrRoleIneligible = errors.New("drivers must be provisioned by an administrator")
)

// RateLimitError reports a denied attempt together with when the window resets.
type RateLimitError struct {
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.ResetTime.Format(time.RFC3339))
}

// Unwrap lets errors.Is match against ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
