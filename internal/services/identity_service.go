package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ridelink/identity/internal/auth"
	"github.com/ridelink/identity/internal/models"
	"github.com/ridelink/identity/internal/ratelimit"
	"github.com/ridelink/identity/internal/security"
	pkgauth "github.com/ridelink/identity/pkg/auth"
)

// Rate limit actions consumed by the resolver. Role-selection guesses burn
// their own bucket so they are throttled independently of initial logins.
const (
	actionLogin     = "login"
	actionLoginRole = "login_role"
	actionRegister  = "register"
)

const (
	defaultBruteForceThreshold = 5
	defaultBruteForceWindow    = 15 * time.Minute
)

// AccountStore is the external account store consumed by the resolver.
// Implementations must return accounts in a stable order; the resolver does
// not depend on which.
type AccountStore interface {
	FindByIdentifier(ctx context.Context, identifier string) ([]*models.Account, error)
	FindByIdentifierAndRole(ctx context.Context, identifier string, role models.Role) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, id string, account *models.Account) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// CredentialVerifier verifies a plaintext secret against a stored
// credential reference. Algorithm-agnostic.
type CredentialVerifier interface {
	Verify(credentialHash, secret string) bool
}

// RegisterParams carries the inputs for account registration.
type RegisterParams struct {
	Identifier  string
	Secret      string
	DisplayName string
	Role        models.Role

	// AdminProvisioned must be set by an administrator code path. Driver
	// registration without it is always rejected.
	AdminProvisioned bool
}

type session struct {
	account *models.Account
	jti     string
}

// IdentityService resolves a login identifier plus credential to exactly
// one authenticated account. Every attempt passes the rate limit gate and
// is recorded in the security event log.
type IdentityService struct {
	store    AccountStore
	verifier CredentialVerifier
	limiter  *ratelimit.Limiter
	events   *security.EventLog
	sessions *auth.SessionManager
	logger   *slog.Logger

	bruteForceThreshold int
	bruteForceWindow    time.Duration

	mu      sync.RWMutex
	current *session
}

type Option func(*IdentityService)

// WithBruteForceDetection tunes the consecutive-failure threshold and the
// window it is evaluated over.
func WithBruteForceDetection(threshold int, window time.Duration) Option {
	return func(s *IdentityService) {
		if threshold > 0 {
			s.bruteForceThreshold = threshold
		}
		if window > 0 {
			s.bruteForceWindow = window
		}
	}
}

// NewIdentityService creates an IdentityService. sessions may be nil, in
// which case resolved identities carry no session token.
func NewIdentityService(
	store AccountStore,
	verifier CredentialVerifier,
	limiter *ratelimit.Limiter,
	events *security.EventLog,
	sessions *auth.SessionManager,
	logger *slog.Logger,
	opts ...Option,
) *IdentityService {
	s := &IdentityService{
		store:               store,
		verifier:            verifier,
		limiter:             limiter,
		events:              events,
		sessions:            sessions,
		logger:              logger,
		bruteForceThreshold: defaultBruteForceThreshold,
		bruteForceWindow:    defaultBruteForceWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// identifierPattern accepts phone numbers (digits, optional leading +) of
// at least 7 digits. Email identifiers are matched separately.
var identifierPattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// normalizeIdentifier trims, lowercases and validates the login handle.
// Format errors are not attempts: they consume no rate limit budget and
// produce no security event.
func normalizeIdentifier(identifier string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return "", fmt.Errorf("%w: identifier is required", models.ErrValidation)
	}
	if strings.Contains(id, "@") {
		if !emailPattern.MatchString(id) {
			return "", fmt.Errorf("%w: malformed email identifier", models.ErrValidation)
		}
		return id, nil
	}
	// Phone numbers: strip common formatting before validating
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(id)
	if !identifierPattern.MatchString(phone) {
		return "", fmt.Errorf("%w: malformed identifier", models.ErrValidation)
	}
	return phone, nil
}

// Login resolves an identifier plus secret to exactly one authenticated
// account. When the identifier maps to more than one eligible account the
// result asks for role selection and no secret is verified.
func (s *IdentityService) Login(ctx context.Context, identifier, secret string) models.ResolutionResult {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return models.Failed(err)
	}
	if secret == "" {
		return models.Failed(fmt.Errorf("%w: secret is required", models.ErrValidation))
	}

	decision := s.limiter.IsAllowed(actionLogin, id, nil)
	if !decision.Allowed {
		s.events.LogRateLimitExceeded(actionLogin, id, decision.ResetTime)
		return models.Failed(&models.RateLimitError{ResetTime: decision.ResetTime})
	}

	accounts, err := s.store.FindByIdentifier(ctx, id)
	if err != nil {
		s.logger.Error("account lookup failed", slog.Any("error", err))
		s.events.LogAuthAttempt(id, false, "account lookup failed", "")
		return models.Failed(fmt.Errorf("%w: account lookup: %v", models.ErrCollaborator, err))
	}

	switch len(accounts) {
	case 0:
		s.events.LogAuthAttempt(id, false, "account not found", "")
		s.noteFailedLogin(id)
		return models.Failed(models.ErrNotFound)
	case 1:
		return s.resolveSingle(ctx, id, accounts[0], secret)
	default:
		return s.resolveMultiple(ctx, id, accounts, secret)
	}
}

// resolveSingle handles the lone-candidate path: role gate first, then
// secret verification. The gate overrides a correct secret.
func (s *IdentityService) resolveSingle(ctx context.Context, identifier string, account *models.Account, secret string) models.ResolutionResult {
	if !account.LoginEligible() {
		s.events.LogAuthAttempt(identifier, false, "driver not provisioned", account.ID)
		s.noteFailedLogin(identifier)
		return models.Failed(models.ErrRoleIneligible)
	}

	if !s.verifier.Verify(account.CredentialHash, secret) {
		s.events.LogAuthAttempt(identifier, false, "invalid credentials", account.ID)
		s.noteFailedLogin(identifier)
		return models.Failed(models.ErrInvalidCredentials)
	}

	token, err := s.establishSession(account)
	if err != nil {
		s.logger.Error("failed to establish session", slog.Any("error", err))
		s.events.LogAuthAttempt(identifier, false, "session issue failed", account.ID)
		return models.Failed(fmt.Errorf("%w: session issue: %v", models.ErrCollaborator, err))
	}

	s.events.LogAuthAttempt(identifier, true, "", account.ID)
	return models.Resolved(account, token)
}

// resolveMultiple applies the role gate as a filter: ineligible drivers
// are dropped from the candidate set, never revealed. A single survivor
// collapses to the single-account path; several survivors defer secret
// verification to the explicit role-selection step.
func (s *IdentityService) resolveMultiple(ctx context.Context, identifier string, accounts []*models.Account, secret string) models.ResolutionResult {
	candidates := make([]*models.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.LoginEligible() {
			candidates = append(candidates, account)
		}
	}

	switch len(candidates) {
	case 0:
		// Fail closed: do not fall back to revealing other roles exist.
		s.events.LogAuthAttempt(identifier, false, "driver not provisioned", "")
		s.noteFailedLogin(identifier)
		return models.Failed(models.ErrRoleIneligible)
	case 1:
		return s.resolveSingle(ctx, identifier, candidates[0], secret)
	default:
		roles := make([]models.Role, 0, len(candidates))
		for _, account := range candidates {
			roles = append(roles, account.Role)
		}
		s.events.LogAuthAttempt(identifier, true, "role selection required", "")
		return models.RoleSelectionRequired(roles)
	}
}

// LoginWithRole completes an ambiguous login for one specific role. The
// caller re-supplies the secret; it is never cached between steps.
func (s *IdentityService) LoginWithRole(ctx context.Context, identifier, roleName, secret string) models.ResolutionResult {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return models.Failed(err)
	}
	role, err := models.ParseRole(roleName)
	if err != nil {
		return models.Failed(err)
	}
	if secret == "" {
		return models.Failed(fmt.Errorf("%w: secret is required", models.ErrValidation))
	}

	decision := s.limiter.IsAllowed(actionLoginRole, id, nil)
	if !decision.Allowed {
		s.events.LogRateLimitExceeded(actionLoginRole, id, decision.ResetTime)
		return models.Failed(&models.RateLimitError{ResetTime: decision.ResetTime})
	}

	account, err := s.store.FindByIdentifierAndRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.events.LogAuthAttempt(id, false, "account not found for role", "")
			s.noteFailedLogin(id)
			return models.Failed(models.ErrNotFound)
		}
		s.logger.Error("account lookup failed", slog.Any("error", err))
		s.events.LogAuthAttempt(id, false, "account lookup failed", "")
		return models.Failed(fmt.Errorf("%w: account lookup: %v", models.ErrCollaborator, err))
	}

	return s.resolveSingle(ctx, id, account, secret)
}

// Register creates a new (identifier, role) account. The same identifier
// may already own accounts under other roles.
func (s *IdentityService) Register(ctx context.Context, params RegisterParams) models.ResolutionResult {
	id, err := normalizeIdentifier(params.Identifier)
	if err != nil {
		return models.Failed(err)
	}
	if err := pkgauth.ValidateSecret(params.Secret); err != nil {
		return models.Failed(fmt.Errorf("%w: %v", models.ErrValidation, err))
	}
	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		return models.Failed(fmt.Errorf("%w: display name is required", models.ErrValidation))
	}
	if _, err := models.ParseRole(string(params.Role)); err != nil {
		return models.Failed(err)
	}

	decision := s.limiter.IsAllowed(actionRegister, id, nil)
	if !decision.Allowed {
		s.events.LogRateLimitExceeded(actionRegister, id, decision.ResetTime)
		return models.Failed(&models.RateLimitError{ResetTime: decision.ResetTime})
	}

	// Self-service driver registration is never permitted, before any
	// store access and independent of rate limiting.
	if params.Role == models.RoleDriver && !params.AdminProvisioned {
		s.events.LogRegistrationAttempt(id, params.Role, false, "driver not provisioned", "")
		return models.Failed(models.ErrRoleIneligible)
	}

	existing, err := s.store.FindByIdentifierAndRole(ctx, id, params.Role)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("account lookup failed", slog.Any("error", err))
		s.events.LogRegistrationAttempt(id, params.Role, false, "account lookup failed", "")
		return models.Failed(fmt.Errorf("%w: account lookup: %v", models.ErrCollaborator, err))
	}
	if existing != nil {
		s.events.LogRegistrationAttempt(id, params.Role, false, "account already exists for role", existing.ID)
		return models.Failed(models.ErrConflict)
	}

	credentialHash, err := pkgauth.HashSecret(params.Secret)
	if err != nil {
		s.logger.Error("failed to hash secret", slog.Any("error", err))
		s.events.LogRegistrationAttempt(id, params.Role, false, "credential hashing failed", "")
		return models.Failed(fmt.Errorf("%w: credential hashing: %v", models.ErrCollaborator, err))
	}

	account := &models.Account{
		Identifier:       id,
		Role:             params.Role,
		CredentialHash:   credentialHash,
		DisplayName:      displayName,
		AdminProvisioned: params.AdminProvisioned,
	}

	created, err := s.store.Create(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.events.LogRegistrationAttempt(id, params.Role, false, "account already exists for role", "")
			return models.Failed(models.ErrConflict)
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		s.events.LogRegistrationAttempt(id, params.Role, false, "account creation failed", "")
		return models.Failed(fmt.Errorf("%w: account creation: %v", models.ErrCollaborator, err))
	}

	token, err := s.establishSession(created)
	if err != nil {
		s.logger.Error("failed to establish session", slog.Any("error", err))
		s.events.LogRegistrationAttempt(id, params.Role, false, "session issue failed", created.ID)
		return models.Failed(fmt.Errorf("%w: session issue: %v", models.ErrCollaborator, err))
	}

	s.logger.Info("account registered",
		slog.String("account_id", created.ID),
		slog.String("role", string(created.Role)))
	s.events.LogRegistrationAttempt(id, params.Role, true, "", created.ID)
	return models.Resolved(created, token)
}

// Logout clears the resolved session. A revocation failure propagates to
// the caller; logout never fails silently.
func (s *IdentityService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	if s.sessions != nil && s.current.jti != "" {
		if err := s.sessions.Revoke(s.current.jti); err != nil {
			return fmt.Errorf("%w: session revocation: %v", models.ErrCollaborator, err)
		}
	}

	s.events.LogLogout(s.current.account.Identifier)
	s.logger.Info("session cleared", slog.String("account_id", s.current.account.ID))
	s.current = nil
	return nil
}

// AccountForSession resolves validated session claims back to the account
// they were issued for. Server callers use this instead of CurrentIdentity
// so concurrent sessions never observe each other.
func (s *IdentityService) AccountForSession(ctx context.Context, claims *models.SessionClaims) (*models.Account, error) {
	if claims == nil {
		return nil, models.ErrUnauthorized
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	account, err := s.store.FindByIdentifierAndRole(ctx, claims.Identifier, role)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("account lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: account lookup: %v", models.ErrCollaborator, err)
	}
	return account, nil
}

// LogoutSession revokes the session named by the claims. Only the caller's
// own jti is revoked; the in-service slot is cleared only when it belongs
// to that same session.
func (s *IdentityService) LogoutSession(ctx context.Context, claims *models.SessionClaims) error {
	if claims == nil {
		return models.ErrUnauthorized
	}

	if s.sessions != nil {
		if err := s.sessions.Revoke(claims.ID); err != nil {
			return fmt.Errorf("%w: session revocation: %v", models.ErrCollaborator, err)
		}
	}

	s.mu.Lock()
	if s.current != nil && claims.ID != "" && s.current.jti == claims.ID {
		s.current = nil
	}
	s.mu.Unlock()

	s.events.LogLogout(claims.Identifier)
	s.logger.Info("session revoked", slog.String("account_id", claims.AccountID))
	return nil
}

// CurrentIdentity returns the account resolved by the most recent
// successful login, or nil.
func (s *IdentityService) CurrentIdentity() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	return s.current.account
}

func (s *IdentityService) establishSession(account *models.Account) (string, error) {
	token := ""
	jti := ""
	if s.sessions != nil {
		var err error
		token, jti, err = s.sessions.Issue(account)
		if err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	s.current = &session{account: account, jti: jti}
	s.mu.Unlock()
	return token, nil
}

// noteFailedLogin asks the event log for the trailing failure run and
// emits a brute-force event once the threshold is reached. Advisory only.
func (s *IdentityService) noteFailedLogin(identifier string) {
	count := s.events.ConsecutiveFailures(identifier, s.bruteForceWindow)
	if count >= s.bruteForceThreshold {
		s.events.LogBruteForceAttempt(identifier, count)
	}
}
