// Package jwtsigner implements the TokenSigner port with HS256 JSON Web Tokens.
package jwtsigner

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"

	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenSigner = (*Signer)(nil)

// Signer signs and verifies access tokens with a process-wide symmetric key.
// The key is copied once at construction and never exposed again.
type Signer struct {
	key      []byte
	issuer   string
	audience string
	clock    clock.Clock
}

// NewSigner creates a Signer. key may be empty, in which case every operation
// returns driven.ErrSigningKeyNotSet. issuer and audience are enforced by Verify.
func NewSigner(key []byte, issuer, audience string, clk clock.Clock) *Signer {
	var owned []byte
	if len(key) > 0 {
		owned = make([]byte, len(key))
		copy(owned, key)
	}
	if clk == nil {
		clk = clock.WallClock
	}

	return &Signer{
		key:      owned,
		issuer:   issuer,
		audience: audience,
		clock:    clk,
	}
}

// accessClaims is the wire shape of a device access token.
type accessClaims struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	PlanTier   string `json:"plan_tier"`
	DeviceName string `json:"device_name"`
	jwt.RegisteredClaims
}

// Sign encodes claims as an HS256 JWT.
func (s *Signer) Sign(c model.AccessClaims) (string, error) {
	if len(s.key) == 0 {
		return "", driven.ErrSigningKeyNotSet
	}

	claims := accessClaims{
		Email:      c.Email,
		Role:       string(c.Role),
		PlanTier:   string(c.Tier),
		DeviceName: c.DeviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			Subject:   c.Subject,
			Issuer:    c.Issuer,
			Audience:  jwt.ClaimStrings{c.Audience},
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw, checking the HS256 signature, expiry, issuer and audience
// against the signer's clock and configuration.
func (s *Signer) Verify(raw string) (*model.AccessClaims, error) {
	if len(s.key) == 0 {
		return nil, driven.ErrSigningKeyNotSet
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	return claims.toModel(), nil
}

func (c accessClaims) toModel() *model.AccessClaims {
	out := &model.AccessClaims{
		ID:         c.ID,
		Subject:    c.Subject,
		Email:      c.Email,
		Issuer:     c.Issuer,
		Role:       model.Role(c.Role),
		Tier:       model.Tier(c.PlanTier),
		DeviceName: c.DeviceName,
	}
	if len(c.Audience) > 0 {
		out.Audience = c.Audience[0]
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.UTC()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.UTC()
	}
	return out
}
