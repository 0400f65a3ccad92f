package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

func TestLookupStore_CreateAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	created, err := store.Create(ctx, &domain.LookupEntry{
		Dimension:   domain.DimensionAssetClass,
		Name:        "Rates",
		Description: ptr("Interest rate products"),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.NotZero(t, created.CreatedAt)

	got, err := store.GetByID(ctx, domain.DimensionAssetClass, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rates", got.Name)
	assert.Equal(t, "Interest rate products", *got.Description)
	assert.Equal(t, domain.DimensionAssetClass, got.Dimension)
}

func TestLookupStore_CreateDuplicateName(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	// "Commodity" is seeded by the migrations.
	_, err := store.Create(ctx, &domain.LookupEntry{
		Dimension: domain.DimensionAssetClass,
		Name:      "Commodity",
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestLookupStore_InvalidDimension(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, domain.Dimension("bogus"), 1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestLookupStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, domain.DimensionProductType, 999999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLookupStore_ListSeededDefaults(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	entries, err := store.List(ctx, domain.DimensionAssetClass, storage.LookupFilter{
		NameIn:  []string{"Commodity", "Credit", "FX"},
		OrderBy: []string{"name"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Commodity", entries[0].Name)
	assert.Equal(t, "Credit", entries[1].Name)
	assert.Equal(t, "FX", entries[2].Name)
}

func TestLookupStore_ListNameILike(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	// Case-insensitive substring match against seeded sub asset classes.
	entries, err := store.List(ctx, domain.DimensionSubAssetClass, storage.LookupFilter{
		NameILike: ptr("em "),
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Contains(t, e.Name, "EM ")
	}
}

func TestLookupStore_SubAssetClassParent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	subs, err := store.List(ctx, domain.DimensionSubAssetClass, storage.LookupFilter{
		NameIn: []string{"Energy"},
	})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].ParentID, "seeded sub asset class must link to its asset class")

	parent, err := store.GetByID(ctx, domain.DimensionAssetClass, *subs[0].ParentID)
	require.NoError(t, err)
	assert.Equal(t, "Commodity", parent.Name)
}

func TestLookupStore_TickerSourceCode(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	created, err := store.Create(ctx, &domain.LookupEntry{
		Dimension: domain.DimensionTickerSource,
		Name:      "ICE",
		Code:      ptr("ICE"),
	})
	require.NoError(t, err)

	got, err := store.GetByID(ctx, domain.DimensionTickerSource, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Code)
	assert.Equal(t, "ICE", *got.Code)
}

func TestLookupStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	created, err := store.Create(ctx, &domain.LookupEntry{
		Dimension: domain.DimensionMarketSegment,
		Name:      "Frontier",
	})
	require.NoError(t, err)

	updated, err := store.Update(ctx, domain.DimensionMarketSegment, created.ID, storage.LookupUpdate{
		Description: ptr("Frontier markets"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Frontier", updated.Name)
	assert.Equal(t, "Frontier markets", *updated.Description)
	assert.True(t, !updated.UpdatedAt.Before(created.UpdatedAt))
}

func TestLookupStore_UpdateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	_, err := store.Update(ctx, domain.DimensionMarketSegment, 999999, storage.LookupUpdate{
		Name: ptr("x"),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLookupStore_Names(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLookupStore(pool)
	ctx := context.Background()

	names, err := store.Names(ctx, domain.DimensionProductType)
	require.NoError(t, err)
	assert.Contains(t, names, "Spot")
	assert.Contains(t, names, "Index")

	// Sorted ascending.
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
