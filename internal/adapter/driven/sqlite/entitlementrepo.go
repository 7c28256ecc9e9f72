package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EntitlementStore = (*EntitlementRepo)(nil)

// EntitlementRepo is the SQLite implementation of the EntitlementStore port interface.
type EntitlementRepo struct {
	db *DB
}

// NewEntitlementRepo creates a new EntitlementRepo backed by the given DB.
func NewEntitlementRepo(db *DB) *EntitlementRepo {
	return &EntitlementRepo{db: db}
}

// GetTierByIdentity returns the plan tier for the user, or ("", nil) when the
// user has no entitlement row.
func (r *EntitlementRepo) GetTierByIdentity(ctx context.Context, identityID string) (model.Tier, error) {
	const query = `SELECT plan_tier FROM entitlements WHERE user_id = ?`

	var tier string
	err := r.db.Reader.QueryRowContext(ctx, query, identityID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get entitlement for %s: %w", identityID, err)
	}

	return model.Tier(tier), nil
}
