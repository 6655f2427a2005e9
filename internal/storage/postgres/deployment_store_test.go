package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage"
	"trenches-buddy/internal/storage/postgres"
)

func testDeployment(id, wallet, name string, active bool) *domain.BuddyDeployment {
	return &domain.BuddyDeployment{
		ID:            id,
		WalletAddress: wallet,
		DeployedAt:    1700000000000,
		BuddyName:     name,
		Configuration: domain.BuddyConfiguration{
			RiskLevel:    65,
			Strategy:     domain.StrategyAggressive,
			MaxTradeSize: 1.25,
			Mode:         domain.ModeDemo,
		},
		IsActive: active,
	}
}

func TestDeploymentStore_SaveAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDeploymentStore(pool)
	ctx := context.Background()

	want := []*domain.BuddyDeployment{
		testDeployment("id-1", "wallet-a", "Scout", false),
		testDeployment("id-2", "wallet-a", "Sniper", true),
		testDeployment("id-3", "wallet-b", "Degen", true),
	}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "id-1", got[0].ID)
	assert.Equal(t, "id-2", got[1].ID)
	assert.Equal(t, "id-3", got[2].ID)
	assert.Equal(t, "Sniper", got[1].BuddyName)
	assert.Equal(t, domain.StrategyAggressive, got[1].Configuration.Strategy)
	assert.Equal(t, domain.ModeDemo, got[1].Configuration.Mode)
	assert.Equal(t, 65, got[1].Configuration.RiskLevel)
	assert.InDelta(t, 1.25, got[1].Configuration.MaxTradeSize, 1e-9)
	assert.True(t, got[1].IsActive)
	assert.False(t, got[0].IsActive)
	assert.Equal(t, int64(1700000000000), got[0].DeployedAt)
}

func TestDeploymentStore_SaveReplacesExisting(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDeploymentStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []*domain.BuddyDeployment{
		testDeployment("id-1", "wallet-a", "Scout", true),
		testDeployment("id-2", "wallet-a", "Sniper", false),
	}))
	require.NoError(t, store.Save(ctx, []*domain.BuddyDeployment{
		testDeployment("id-9", "wallet-c", "Hodler", true),
	}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "id-9", got[0].ID)
}

func TestDeploymentStore_LoadEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDeploymentStore(pool)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeploymentStore_SaveInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDeploymentStore(pool)

	err := store.Save(context.Background(), []*domain.BuddyDeployment{
		testDeployment("", "wallet-a", "Scout", true),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestDeploymentStore_SaveDuplicateIDs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDeploymentStore(pool)
	ctx := context.Background()

	err := store.Save(ctx, []*domain.BuddyDeployment{
		testDeployment("id-1", "wallet-a", "Scout", true),
		testDeployment("id-1", "wallet-a", "Scout", true),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// Failed save must not leave partial state behind.
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
