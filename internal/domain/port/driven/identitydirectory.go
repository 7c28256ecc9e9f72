package driven

import (
	"context"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// IdentityDirectory defines the driven port for read-only user lookup.
type IdentityDirectory interface {
	// GetByID returns the identity with the given id, or nil, nil if it does not exist.
	GetByID(ctx context.Context, id string) (*model.Identity, error)
}
