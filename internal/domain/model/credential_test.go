package model

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTokenPrefix(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "…"},
		{"short", "tok_a", "…"},
		{"exactly visible", "tok_ab", "…"},
		{"ascii", "tok_abcdef", "tok_ab…"},
		{"multibyte", "ключ_секрет", "ключ_с…"},
		{"short multibyte", "ключик", "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenPrefix(tt.token)

			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestCredential_IsRevoked(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, Credential{}.IsRevoked())
	assert.True(t, Credential{RevokedAt: &at}.IsRevoked())
	assert.True(t, Credential{RevokedAt: &time.Time{}}.IsRevoked())
}
