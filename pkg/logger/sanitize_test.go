package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"email keeps last four", "rider.lee@example.com", "***.com"},
		{"phone keeps last four", "7005550101", "***0101"},
		{"exactly four chars fully masked", "abcd", "***"},
		{"short value fully masked", "ab", "***"},
		{"empty value fully masked", "", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskIdentifier(tt.identifier))
		})
	}
}

func TestMaskIdentifier_Deterministic(t *testing.T) {
	assert.Equal(t, MaskIdentifier("7005550101"), MaskIdentifier("7005550101"),
		"masked values must stay correlatable across events")
}

func TestRedactedAttr(t *testing.T) {
	attr := RedactedAttr("identifier", "rider.lee@example.com", "production")
	assert.Equal(t, "[REDACTED]", attr.Value.String())

	attr = RedactedAttr("identifier", "rider.lee@example.com", "development")
	assert.Equal(t, "rider.lee@example.com", attr.Value.String())
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("identifier=rider.lee%40example.com"))
	assert.True(t, SanitizeQueryString("PASSWORD=hunter2"))
	assert.True(t, SanitizeQueryString("page=2&token=abc"))
	assert.False(t, SanitizeQueryString("page=2&limit=50"))
	assert.False(t, SanitizeQueryString(""))
}
