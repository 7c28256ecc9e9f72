package driven

import (
	"context"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// EntitlementStore defines the driven port for plan tier lookup.
type EntitlementStore interface {
	// GetTierByIdentity returns the tier assigned to the identity.
	// Returns ("", nil) if the identity has no entitlement record.
	GetTierByIdentity(ctx context.Context, identityID string) (model.Tier, error)
}
