package model

import "time"

// AccessClaims is the set of claims carried by a device access token.
type AccessClaims struct {
	ID         string // unique per issued token
	Subject    string // identity id
	Email      string
	Audience   string
	Issuer     string
	Role       Role
	Tier       Tier
	DeviceName string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// AccessGrant is the result of a successful credential exchange. Token is
// authoritative; Claims mirrors what was signed into it for the immediate
// caller's convenience.
type AccessGrant struct {
	Token  string
	Claims AccessClaims
}
