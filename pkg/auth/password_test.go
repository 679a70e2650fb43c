package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompareSecret(t *testing.T) {
	hash, err := HashSecret("correct-horse-battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery", hash)

	assert.NoError(t, CompareSecret(hash, "correct-horse-battery"))
	assert.Error(t, CompareSecret(hash, "wrong-secret"))
}

func TestHashSecret_RejectsEmpty(t *testing.T) {
	_, err := HashSecret("")
	assert.Error(t, err)
}

func TestHashSecret_Salted(t *testing.T) {
	first, err := HashSecret("correct-horse-battery")
	require.NoError(t, err)
	second, err := HashSecret("correct-horse-battery")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"acceptable secret", "correct-horse-battery", false},
		{"minimum length", "eightchr", false},
		{"too short", "short", true},
		{"too long", strings.Repeat("a", MaxSecretLen+1), true},
		{"common secret", "password", true},
		{"common secret case insensitive", "PASSWORD", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBcryptVerifier(t *testing.T) {
	hash, err := HashSecret("correct-horse-battery")
	require.NoError(t, err)

	verifier := &BcryptVerifier{}
	assert.True(t, verifier.Verify(hash, "correct-horse-battery"))
	assert.False(t, verifier.Verify(hash, "wrong-secret"))
	assert.False(t, verifier.Verify("not-a-hash", "correct-horse-battery"))
}

func TestSecretValidationError_GenericMessage(t *testing.T) {
	err := ValidateSecret("short")
	require.Error(t, err)
	assert.Equal(t, "invalid secret", err.Error(), "callers never see the specific policy rule")
}
