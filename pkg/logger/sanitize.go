package logger

import (
	"log/slog"
	"strings"
)

const (
	maskToken         = "***"
	maskVisibleSuffix = 4
)

// MaskIdentifier masks a login identifier (phone or email) for logging and
// event storage. Only a fixed-length suffix survives; the transform is
// one-way and deterministic so masked values can still be correlated.
func MaskIdentifier(identifier string) string {
	if len(identifier) <= maskVisibleSuffix {
		return maskToken
	}
	return maskToken + identifier[len(identifier)-maskVisibleSuffix:]
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"secret",
		"token",
		"identifier",
		"phone",
		"email",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
