// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"
	"time"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// ErrCredentialNotFound indicates no stored credential matches the given token.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore defines the driven port for API key lookup. Keys are
// created and revoked elsewhere; the exchange flow only reads them and
// records their last use.
type CredentialStore interface {
	// FindByToken returns the credential whose secret exactly matches token.
	// Returns nil, nil if no such credential exists.
	FindByToken(ctx context.Context, token string) (*model.Credential, error)

	// UpdateLastUsed sets the last-used timestamp of the credential matching token.
	UpdateLastUsed(ctx context.Context, token string, at time.Time) error
}
