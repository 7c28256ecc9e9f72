package driven

import (
	"errors"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// ErrSigningKeyNotSet is returned by TokenSigner operations when
// DEVICETOKEN_SIGNING_KEY has not been configured.
var ErrSigningKeyNotSet = errors.New("signing key not configured: set DEVICETOKEN_SIGNING_KEY")

// TokenSigner defines the driven port for minting and checking access tokens.
type TokenSigner interface {
	// Sign encodes claims into a signed token string.
	// Returns ErrSigningKeyNotSet if the adapter was constructed without a key.
	Sign(claims model.AccessClaims) (string, error)

	// Verify checks the token signature, expiry, issuer and audience and
	// returns the decoded claims.
	Verify(token string) (*model.AccessClaims, error)
}
