package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ridelink/identity/internal/models"
)

// SessionManager issues and validates signed session tokens for resolved
// identities and tracks revocations from logout.
type SessionManager struct {
	secret string
	expiry time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> token expiry, for pruning
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(secret string, expiry time.Duration) *SessionManager {
	return &SessionManager{
		secret:  secret,
		expiry:  expiry,
		revoked: make(map[string]time.Time),
	}
}

// Issue creates a signed session token for the account and returns the
// token string and its JTI.
func (sm *SessionManager) Issue(account *models.Account) (string, string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := &models.SessionClaims{
		AccountID:  account.ID,
		Identifier: account.Identifier,
		Role:       string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(sm.secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, jti, nil
}

// Validate parses and verifies a session token, rejecting revoked sessions.
func (sm *SessionManager) Validate(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(sm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	sm.mu.Lock()
	_, revoked := sm.revoked[claims.ID]
	sm.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("session has been revoked")
	}
	return claims, nil
}

// Revoke invalidates a session by JTI. Already-expired revocations are
// pruned opportunistically to keep the set bounded.
func (sm *SessionManager) Revoke(jti string) error {
	if jti == "" {
		return fmt.Errorf("missing session id")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, expiry := range sm.revoked {
		if expiry.Before(now) {
			delete(sm.revoked, id)
		}
	}
	sm.revoked[jti] = now.Add(sm.expiry)
	return nil
}
