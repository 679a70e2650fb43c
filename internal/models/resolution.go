package models

// ResolutionStatus tags the outcome of a register/login attempt.
type ResolutionStatus int

const (
	ResolutionFailed ResolutionStatus = iota
	ResolutionResolved
	ResolutionRoleSelection
)

// ResolutionResult is a tagged result: exactly one of the identity, the
// available-role set, or the error is populated, depending on the status.
// Construct results only through Resolved, RoleSelectionRequired and Failed
// so an illegal combination cannot be built.
type ResolutionResult struct {
	status         ResolutionStatus
	identity       *Account
	sessionToken   string
	availableRoles []Role
	err            error
}

// Resolved builds a successful result carrying the authenticated account
// and its session token.
func Resolved(identity *Account, sessionToken string) ResolutionResult {
	return ResolutionResult{
		status:       ResolutionResolved,
		identity:     identity,
		sessionToken: sessionToken,
	}
}

// RoleSelectionRequired builds a successful result that asks the caller to
// pick one of the eligible roles before authentication can complete.
func RoleSelectionRequired(roles []Role) ResolutionResult {
	return ResolutionResult{
		status:         ResolutionRoleSelection,
		availableRoles: roles,
	}
}

// Failed builds a failed result wrapping the typed error.
func Failed(err error) ResolutionResult {
	return ResolutionResult{
		status: ResolutionFailed,
		err:    err,
	}
}

func (r ResolutionResult) Status() ResolutionStatus { return r.status }

// Success reports whether the attempt did not fail. A role-selection
// prompt counts as success: ambiguity is not a failure.
func (r ResolutionResult) Success() bool { return r.status != ResolutionFailed }

func (r ResolutionResult) RequiresRoleSelection() bool { return r.status == ResolutionRoleSelection }

// Identity returns the resolved account, or nil unless the status is Resolved.
func (r ResolutionResult) Identity() *Account { return r.identity }

func (r ResolutionResult) SessionToken() string { return r.sessionToken }

// AvailableRoles returns the eligible roles when role selection is required.
func (r ResolutionResult) AvailableRoles() []Role { return r.availableRoles }

func (r ResolutionResult) Err() error { return r.err }
