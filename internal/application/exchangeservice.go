// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/domain/port/driven"
)

// Sentinel errors returned by ExchangeService.Exchange.
var (
	// ErrMissingCredential indicates the caller supplied no API key.
	ErrMissingCredential = errors.New("credential is required")

	// ErrInvalidCredential indicates the API key is unknown or could not be looked up.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrRevokedCredential indicates the API key exists but has been revoked.
	ErrRevokedCredential = errors.New("credential revoked")

	// ErrIdentityNotFound indicates the API key references a user that does not exist.
	ErrIdentityNotFound = errors.New("identity not found")
)

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = 24 * time.Hour

// ExchangeOptions configures the claims minted by ExchangeService.
type ExchangeOptions struct {
	Issuer      string
	Audience    string
	TTL         time.Duration
	DefaultTier model.Tier
}

// ExchangeService trades a long-lived device API key for a short-lived signed
// access token. It holds no mutable state and is safe for concurrent use.
type ExchangeService struct {
	credentials  driven.CredentialStore
	identities   driven.IdentityDirectory
	entitlements driven.EntitlementStore
	signer       driven.TokenSigner
	opts         ExchangeOptions
	clock        clock.Clock
	logger       *slog.Logger
}

// NewExchangeService creates an ExchangeService. Zero-valued options fall back
// to DefaultTokenTTL and model.DefaultTier; a nil clock uses the wall clock.
func NewExchangeService(
	credentials driven.CredentialStore,
	identities driven.IdentityDirectory,
	entitlements driven.EntitlementStore,
	signer driven.TokenSigner,
	opts ExchangeOptions,
	clk clock.Clock,
	logger *slog.Logger,
) *ExchangeService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTokenTTL
	}
	if opts.DefaultTier == "" {
		opts.DefaultTier = model.DefaultTier
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ExchangeService{
		credentials:  credentials,
		identities:   identities,
		entitlements: entitlements,
		signer:       signer,
		opts:         opts,
		clock:        clk,
		logger:       logger,
	}
}

// Exchange validates credential and, if it belongs to a live API key whose
// owner exists, returns a signed access token for that owner. No token is
// issued on any error path.
func (s *ExchangeService) Exchange(ctx context.Context, credential string) (*model.AccessGrant, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	prefix := model.TokenPrefix(credential)

	cred, err := s.credentials.FindByToken(ctx, credential)
	if err != nil {
		s.logger.Error("credential lookup failed", "key_prefix", prefix, "error", err)
		return nil, ErrInvalidCredential
	}
	if cred == nil {
		s.logger.Info("unknown credential presented", "key_prefix", prefix)
		return nil, ErrInvalidCredential
	}
	if cred.IsRevoked() {
		s.logger.Info("revoked credential presented",
			"key_prefix", prefix,
			"user_id", cred.UserID,
			"revoked_at", cred.RevokedAt.UTC().Format(time.RFC3339),
		)
		return nil, ErrRevokedCredential
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	s.touchCredential(ctx, credential, now)

	identity, err := s.identities.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve identity %s: %w", cred.UserID, err)
	}
	if identity == nil {
		s.logger.Warn("credential references missing identity", "key_prefix", prefix, "user_id", cred.UserID)
		return nil, ErrIdentityNotFound
	}

	claims := model.AccessClaims{
		ID:         uuid.NewString(),
		Subject:    identity.ID,
		Email:      identity.Email,
		Audience:   s.opts.Audience,
		Issuer:     s.opts.Issuer,
		Role:       model.RoleAuthenticated,
		Tier:       s.resolveTier(ctx, identity.ID),
		DeviceName: cred.DeviceName,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.opts.TTL),
	}

	token, err := s.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("device token issued",
		"user_id", claims.Subject,
		"device_name", claims.DeviceName,
		"plan_tier", claims.Tier,
		"expires_at", claims.ExpiresAt.Format(time.RFC3339),
	)

	return &model.AccessGrant{Token: token, Claims: claims}, nil
}

// touchCredential records the credential's last use. Failure is logged and
// otherwise ignored; it never affects the outcome of the exchange.
func (s *ExchangeService) touchCredential(ctx context.Context, credential string, at time.Time) {
	if err := s.credentials.UpdateLastUsed(ctx, credential, at); err != nil {
		s.logger.Warn("failed to update credential last used",
			"key_prefix", model.TokenPrefix(credential),
			"error", err,
		)
	}
}

// resolveTier returns the identity's plan tier, falling back to the default
// tier when no entitlement exists or the lookup fails.
func (s *ExchangeService) resolveTier(ctx context.Context, identityID string) model.Tier {
	tier, err := s.entitlements.GetTierByIdentity(ctx, identityID)
	if err != nil {
		s.logger.Warn("entitlement lookup failed, using default tier",
			"user_id", identityID,
			"default_tier", s.opts.DefaultTier,
			"error", err,
		)
		return s.opts.DefaultTier
	}
	if tier == "" {
		return s.opts.DefaultTier
	}
	return tier
}
