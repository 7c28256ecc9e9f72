package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

func TestEntitlementRepo_GetTierByIdentity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntitlementRepo(db)
	ctx := context.Background()

	insertEntitlement(t, db, "u1", "pro")

	tier, err := repo.GetTierByIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.TierPro, tier)

	tier, err = repo.GetTierByIdentity(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, model.Tier(""), tier)
}
