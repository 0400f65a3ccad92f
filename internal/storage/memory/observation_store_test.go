package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

func TestObservationStore_InsertAndGet(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	ts := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	err := store.Insert(ctx, &domain.Observation{
		SeriesID:  101,
		Timestamp: ts,
		Value:     decimal.RequireFromString("1.2345"),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, 101, ts)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Value.Equal(decimal.RequireFromString("1.2345")) {
		t.Errorf("value mismatch: %s", got.Value)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected created_at/updated_at to be set")
	}
}

func TestObservationStore_GetNotFound(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	_, err := store.Get(ctx, 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestObservationStore_ReinsertIsUpsert(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	// Intraday times on the same date collapse to one key.
	ts1 := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	ts2 := time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)

	if err := store.Insert(ctx, &domain.Observation{
		SeriesID: 7, Timestamp: ts1, Value: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	first, err := store.Get(ctx, 7, ts1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := store.Insert(ctx, &domain.Observation{
		SeriesID: 7, Timestamp: ts2, Value: decimal.NewFromInt(2),
	}); err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}

	got, err := store.Get(ctx, 7, ts1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Value.Equal(decimal.NewFromInt(2)) {
		t.Errorf("last write wins: got %s", got.Value)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Error("created_at is preserved across upserts")
	}

	// Only one row per (series, date).
	all, err := store.Scan(ctx, storage.ObservationFilter{SeriesIDIn: []int64{7}})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 row, got %d", len(all))
	}
}

func TestObservationStore_Scan(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var batch []*domain.Observation
	for day := 0; day < 5; day++ {
		batch = append(batch, &domain.Observation{
			SeriesID:  1,
			Timestamp: base.AddDate(0, 0, day),
			Value:     decimal.NewFromInt(int64(day * 10)),
		})
	}
	batch = append(batch, &domain.Observation{SeriesID: 2, Timestamp: base, Value: decimal.NewFromInt(100)})
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Time window on one series.
	got, err := store.Scan(ctx, storage.ObservationFilter{
		SeriesIDIn:   []int64{1},
		TimestampGTE: timePtr(base.AddDate(0, 0, 1)),
		TimestampLTE: timePtr(base.AddDate(0, 0, 3)),
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Default order is series_id ASC, timestamp DESC.
	if !got[0].Timestamp.After(got[1].Timestamp) {
		t.Error("expected timestamp descending by default")
	}

	// Value bounds.
	lo := decimal.NewFromInt(15)
	hi := decimal.NewFromInt(35)
	got, err = store.Scan(ctx, storage.ObservationFilter{SeriesIDIn: []int64{1}, ValueGTE: &lo, ValueLTE: &hi})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 rows in value window, got %d", len(got))
	}

	// Explicit order with paging.
	got, err = store.Scan(ctx, storage.ObservationFilter{
		SeriesIDIn: []int64{1},
		OrderBy:    []string{"timestamp"},
		Skip:       1,
		Limit:      2,
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 2 || !got[0].Timestamp.Equal(base.AddDate(0, 0, 1)) {
		t.Errorf("paging mismatch: %v", got)
	}

	// Unknown order field.
	if _, err := store.Scan(ctx, storage.ObservationFilter{OrderBy: []string{"nope"}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestObservationStore_Update(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	ts := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Insert(ctx, &domain.Observation{
		SeriesID: 5, Timestamp: ts, Value: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	updated, err := store.Update(ctx, 5, ts, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Value.Equal(decimal.NewFromInt(2)) {
		t.Errorf("value mismatch: %s", updated.Value)
	}

	got, err := store.Get(ctx, 5, ts)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Value.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected updated value, got %s", got.Value)
	}
}

func TestObservationStore_UpdateNotFound(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	_, err := store.Update(ctx, 404, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(1))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
