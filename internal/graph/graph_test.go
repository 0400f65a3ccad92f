package graph

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-series-store/internal/apperror"
	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
	"fin-series-store/internal/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.SeriesStore) {
	t.Helper()

	lookups := memory.NewLookupStore()
	series := memory.NewSeriesStore(lookups)
	deps := memory.NewDependencyStore(series)
	calcs := memory.NewCalculationStore(series)
	return NewService(deps, calcs, nil, nil), series
}

func seedSeries(t *testing.T, series *memory.SeriesStore, name string) int64 {
	t.Helper()

	s, err := series.Create(context.Background(), &domain.Series{SeriesName: name, IsActive: true})
	require.NoError(t, err)
	return s.SeriesID
}

func TestCreateDependency_WeightBounds(t *testing.T) {
	svc, series := newService(t)
	ctx := context.Background()

	parent := seedSeries(t, series, "PARENT")
	child := seedSeries(t, series, "CHILD")

	for _, w := range []string{"0", "0.5", "1"} {
		weight := decimal.RequireFromString(w)
		_, err := svc.CreateDependency(ctx, &domain.DependencyEdge{
			ParentSeriesID: parent,
			ChildSeriesID:  child,
			Weight:         &weight,
			IsActive:       true,
		})
		assert.NoError(t, err, "weight %s is inside [0,1]", w)
	}

	for _, w := range []string{"-0.1", "1.01"} {
		weight := decimal.RequireFromString(w)
		_, err := svc.CreateDependency(ctx, &domain.DependencyEdge{
			ParentSeriesID: parent,
			ChildSeriesID:  child,
			Weight:         &weight,
			IsActive:       true,
		})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err), "weight %s is outside [0,1]", w)
	}
}

func TestCreateDependency_SelfLoopAccepted(t *testing.T) {
	svc, series := newService(t)
	ctx := context.Background()

	id := seedSeries(t, series, "SELF")

	created, err := svc.CreateDependency(ctx, &domain.DependencyEdge{
		ParentSeriesID: id,
		ChildSeriesID:  id,
		IsActive:       true,
	})
	require.NoError(t, err, "cycles are the consumer's problem, not the store's")
	assert.Equal(t, created.ParentSeriesID, created.ChildSeriesID)
}

func TestCreateDependency_BadReference(t *testing.T) {
	svc, series := newService(t)
	ctx := context.Background()

	child := seedSeries(t, series, "CHILD")

	_, err := svc.CreateDependency(ctx, &domain.DependencyEdge{
		ParentSeriesID: 999,
		ChildSeriesID:  child,
		IsActive:       true,
	})
	assert.Equal(t, apperror.KindReferential, apperror.KindOf(err))
}

func TestListDependencies_DefaultsToActive(t *testing.T) {
	svc, series := newService(t)
	ctx := context.Background()

	parent := seedSeries(t, series, "PARENT")
	child := seedSeries(t, series, "CHILD")

	_, err := svc.CreateDependency(ctx, &domain.DependencyEdge{
		ParentSeriesID: parent, ChildSeriesID: child, IsActive: true,
	})
	require.NoError(t, err)
	_, err = svc.CreateDependency(ctx, &domain.DependencyEdge{
		ParentSeriesID: parent, ChildSeriesID: child, IsActive: false,
	})
	require.NoError(t, err)

	got, err := svc.ListDependencies(ctx, storage.DependencyFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1, "inactive edges are hidden unless asked for")
	assert.True(t, got[0].IsActive)

	inactive := false
	got, err = svc.ListDependencies(ctx, storage.DependencyFilter{IsActive: &inactive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsActive)
}

func TestGetDependency_NotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.GetDependency(ctx, 42)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestCreateCalculation(t *testing.T) {
	svc, series := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCalculation(ctx, &domain.CalculationLogEntry{})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err), "derived_series_id is required")

	_, err = svc.CreateCalculation(ctx, &domain.CalculationLogEntry{DerivedSeriesID: 999})
	assert.Equal(t, apperror.KindReferential, apperror.KindOf(err))

	derived := seedSeries(t, series, "DERIVED")
	status := domain.CalculationStatusFailed
	created, err := svc.CreateCalculation(ctx, &domain.CalculationLogEntry{
		DerivedSeriesID:   derived,
		CalculationStatus: &status,
		ErrorMessage:      strPtr("window too short"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.CalculatedAt)

	// The ledger records whatever the producer reports, failures included.
	got, err := svc.GetCalculation(ctx, created.CalculationID)
	require.NoError(t, err)
	assert.Equal(t, domain.CalculationStatusFailed, *got.CalculationStatus)
}

func TestListCalculations(t *testing.T) {
	svc, series := newService(t)
	ctx := context.Background()

	derived := seedSeries(t, series, "DERIVED")
	success := domain.CalculationStatusSuccess
	stale := domain.CalculationStatusStale

	for _, status := range []*string{&success, &stale} {
		_, err := svc.CreateCalculation(ctx, &domain.CalculationLogEntry{
			DerivedSeriesID:   derived,
			CalculationStatus: status,
		})
		require.NoError(t, err)
	}

	got, err := svc.ListCalculations(ctx, storage.CalculationFilter{
		DerivedSeriesIDIn: []int64{derived},
		StatusIn:          []string{success},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, success, *got[0].CalculationStatus)
}

func strPtr(s string) *string {
	return &s
}
