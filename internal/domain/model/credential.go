package model

import "time"

// Credential is a long-lived API key issued to a device or integration.
// Token is the plaintext secret presented by the client; stores are free to
// persist only a digest of it.
type Credential struct {
	ID         int64
	Token      string
	UserID     string
	DeviceName string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time // non-nil means permanently unusable
}

// IsRevoked reports whether the credential has been revoked.
func (c Credential) IsRevoked() bool {
	return c.RevokedAt != nil
}

// TokenPrefix returns a short, non-secret prefix of the token suitable for logs.
func TokenPrefix(token string) string {
	const visible = 6
	runes := []rune(token)
	if len(runes) <= visible {
		return "…"
	}
	return string(runes[:visible]) + "…"
}
