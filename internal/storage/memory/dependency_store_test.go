package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

func TestDependencyStore_CreateAndGet(t *testing.T) {
	series, _ := newTestSeriesStore(t)
	store := NewDependencyStore(series)
	ctx := context.Background()

	parent, err := series.Create(ctx, &domain.Series{SeriesName: "PARENT", IsActive: true})
	if err != nil {
		t.Fatalf("create parent failed: %v", err)
	}
	child, err := series.Create(ctx, &domain.Series{SeriesName: "CHILD", IsActive: true})
	if err != nil {
		t.Fatalf("create child failed: %v", err)
	}

	weight := decimal.RequireFromString("0.5")
	created, err := store.Create(ctx, &domain.DependencyEdge{
		ParentSeriesID: parent.SeriesID,
		ChildSeriesID:  child.SeriesID,
		Weight:         &weight,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.DependencyID == 0 {
		t.Error("expected non-zero dependency id")
	}

	got, err := store.GetByID(ctx, created.DependencyID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ParentSeriesID != parent.SeriesID || got.ChildSeriesID != child.SeriesID {
		t.Errorf("edge endpoints mismatch: %+v", got)
	}
	if got.Weight == nil || !got.Weight.Equal(weight) {
		t.Errorf("weight mismatch: %v", got.Weight)
	}
}

func TestDependencyStore_BadReference(t *testing.T) {
	series, _ := newTestSeriesStore(t)
	store := NewDependencyStore(series)
	ctx := context.Background()

	child, err := series.Create(ctx, &domain.Series{SeriesName: "ORPHAN_CHILD", IsActive: true})
	if err != nil {
		t.Fatalf("create child failed: %v", err)
	}

	_, err = store.Create(ctx, &domain.DependencyEdge{
		ParentSeriesID: 999,
		ChildSeriesID:  child.SeriesID,
		IsActive:       true,
	})
	if !errors.Is(err, storage.ErrForeignKeyViolation) {
		t.Errorf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestDependencyStore_SelfLoopAccepted(t *testing.T) {
	series, _ := newTestSeriesStore(t)
	store := NewDependencyStore(series)
	ctx := context.Background()

	s, err := series.Create(ctx, &domain.Series{SeriesName: "SELF", IsActive: true})
	if err != nil {
		t.Fatalf("create series failed: %v", err)
	}

	// The graph is not validated acyclic.
	if _, err := store.Create(ctx, &domain.DependencyEdge{
		ParentSeriesID: s.SeriesID,
		ChildSeriesID:  s.SeriesID,
		IsActive:       true,
	}); err != nil {
		t.Errorf("self-loop must be accepted, got %v", err)
	}
}

func TestDependencyStore_GetNotFound(t *testing.T) {
	store := NewDependencyStore(nil)
	ctx := context.Background()

	_, err := store.GetByID(ctx, 42)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDependencyStore_List(t *testing.T) {
	// nil series store skips reference checks.
	store := NewDependencyStore(nil)
	ctx := context.Background()

	edges := []*domain.DependencyEdge{
		{ParentSeriesID: 1, ChildSeriesID: 3, IsActive: true, DependencyType: strPtr("input")},
		{ParentSeriesID: 2, ChildSeriesID: 3, IsActive: true, DependencyType: strPtr("input")},
		{ParentSeriesID: 1, ChildSeriesID: 2, IsActive: false, DependencyType: strPtr("retired")},
	}
	for _, e := range edges {
		if _, err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := store.List(ctx, storage.DependencyFilter{ChildSeriesIDIn: []int64{3}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 incoming edges, got %d", len(got))
	}

	active := true
	got, err = store.List(ctx, storage.DependencyFilter{
		ParentSeriesIDIn: []int64{1},
		IsActive:         &active,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].ChildSeriesID != 3 {
		t.Errorf("expected one active edge 1->3, got %v", got)
	}

	got, err = store.List(ctx, storage.DependencyFilter{DependencyTypeIn: []string{"retired"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].IsActive {
		t.Errorf("expected one inactive retired edge, got %v", got)
	}
}

func strPtr(s string) *string {
	return &s
}
