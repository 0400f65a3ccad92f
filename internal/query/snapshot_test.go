package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage/memory"
)

func TestDefaultSnapshot(t *testing.T) {
	snap := DefaultSnapshot()

	assert.True(t, snap.Contains(domain.DimensionAssetClass, "Commodity"))
	assert.True(t, snap.Contains(domain.DimensionFieldType, "PX_LAST"))
	assert.False(t, snap.Contains(domain.DimensionAssetClass, "Equity"))

	assert.NoError(t, snap.Validate(domain.DimensionAssetClass, []string{"Commodity", "FX"}))
	err := snap.Validate(domain.DimensionAssetClass, []string{"Commodity", "Equity"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Equity")
}

func TestSnapshotHolder_RefreshFromLookups(t *testing.T) {
	lookups := memory.NewLookupStore()
	ctx := context.Background()

	_, err := lookups.Create(ctx, &domain.LookupEntry{
		Dimension: domain.DimensionAssetClass,
		Name:      "Equity",
	})
	require.NoError(t, err)

	holder := NewSnapshotHolder(lookups)

	// Before refresh the compiled-in defaults apply.
	assert.False(t, holder.Current().Contains(domain.DimensionAssetClass, "Equity"))
	assert.True(t, holder.Current().Contains(domain.DimensionAssetClass, "Commodity"))

	_, err = holder.Refresh(ctx)
	require.NoError(t, err)

	snap := holder.Current()
	assert.True(t, snap.Contains(domain.DimensionAssetClass, "Equity"))
	// The asset_class table has rows now, so database values replace the
	// defaults for that dimension.
	assert.False(t, snap.Contains(domain.DimensionAssetClass, "Commodity"))
	// Empty dimensions keep their defaults.
	assert.True(t, snap.Contains(domain.DimensionProductType, "Spot"))
}
