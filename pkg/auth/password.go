package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost   = 12
	MinSecretLen = 8
	MaxSecretLen = 128
)

// SecretValidationError holds validation error details (internal use only)
type SecretValidationError struct {
	Errors []string
}

func (e *SecretValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "secret validation failed"
	}
	// Generic message to callers - never expose specific requirements
	return "invalid secret"
}

// Common weak secrets to reject
var commonSecrets = map[string]bool{
	"password":    true,
	"12345678":    true,
	"qwerty123":   true,
	"password123": true,
	"letmein1":    true,
	"welcome1":    true,
	"passw0rd":    true,
	"sunshine":    true,
	"princess":    true,
	"trustno1":    true,
}

// HashSecret hashes a plaintext secret with bcrypt.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// CompareSecret verifies a plaintext secret against a stored bcrypt hash.
func CompareSecret(credentialHash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(credentialHash), []byte(secret))
}

// ValidateSecret enforces the registration secret policy.
func ValidateSecret(secret string) error {
	errs := make([]string, 0)

	if len(secret) < MinSecretLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinSecretLen))
	}
	if len(secret) > MaxSecretLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxSecretLen))
	}
	if commonSecrets[strings.ToLower(secret)] {
		errs = append(errs, "is too common, please choose a more unique secret")
	}

	if len(errs) > 0 {
		return &SecretValidationError{Errors: errs}
	}
	return nil
}
