package memory

import (
	"context"
	"sort"
	"sync"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// DependencyStore is an in-memory implementation of storage.DependencyStore.
// Like the relational store it accepts self-loops and cycles; only the
// existence of the referenced series is checked.
type DependencyStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.DependencyEdge
	nextID int64
	series *SeriesStore
}

// NewDependencyStore creates a new in-memory dependency store. series may be
// nil to skip reference checks.
func NewDependencyStore(series *SeriesStore) *DependencyStore {
	return &DependencyStore{
		data:   make(map[int64]*domain.DependencyEdge),
		nextID: 1,
		series: series,
	}
}

var _ storage.DependencyStore = (*DependencyStore)(nil)

// Create inserts an edge. A parent or child id missing from the registry
// surfaces as ErrForeignKeyViolation.
func (s *DependencyStore) Create(ctx context.Context, e *domain.DependencyEdge) (*domain.DependencyEdge, error) {
	if s.series != nil {
		if _, err := s.series.GetByID(ctx, e.ParentSeriesID); err != nil {
			return nil, storage.ErrForeignKeyViolation
		}
		if _, err := s.series.GetByID(ctx, e.ChildSeriesID); err != nil {
			return nil, storage.ErrForeignKeyViolation
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge := *e
	edge.DependencyID = s.nextID
	edge.CreatedAt = now()
	s.nextID++
	s.data[edge.DependencyID] = &edge

	result := edge
	return &result, nil
}

// GetByID retrieves an edge. Returns ErrNotFound if not exists.
func (s *DependencyStore) GetByID(_ context.Context, dependencyID int64) (*domain.DependencyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[dependencyID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	edge := *e
	return &edge, nil
}

// List retrieves edges matching the filter.
func (s *DependencyStore) List(_ context.Context, f storage.DependencyFilter) ([]*domain.DependencyEdge, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, map[string]bool{
		"dependency_id": true, "parent_series_id": true, "child_series_id": true, "created_at": true,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DependencyEdge
	for _, e := range s.data {
		if len(f.ParentSeriesIDIn) > 0 && !containsInt64(f.ParentSeriesIDIn, e.ParentSeriesID) {
			continue
		}
		if len(f.ChildSeriesIDIn) > 0 && !containsInt64(f.ChildSeriesIDIn, e.ChildSeriesID) {
			continue
		}
		if f.IsActive != nil && e.IsActive != *f.IsActive {
			continue
		}
		if len(f.DependencyTypeIn) > 0 {
			if e.DependencyType == nil || !containsString(f.DependencyTypeIn, *e.DependencyType) {
				continue
			}
		}
		edge := *e
		result = append(result, &edge)
	}

	sort.Slice(result, func(i, j int) bool {
		for _, t := range terms {
			var less, eq bool
			switch t.Field {
			case "parent_series_id":
				less, eq = result[i].ParentSeriesID < result[j].ParentSeriesID, result[i].ParentSeriesID == result[j].ParentSeriesID
			case "child_series_id":
				less, eq = result[i].ChildSeriesID < result[j].ChildSeriesID, result[i].ChildSeriesID == result[j].ChildSeriesID
			case "created_at":
				less, eq = result[i].CreatedAt.Before(result[j].CreatedAt), result[i].CreatedAt.Equal(result[j].CreatedAt)
			default:
				less, eq = result[i].DependencyID < result[j].DependencyID, result[i].DependencyID == result[j].DependencyID
			}
			if !eq {
				if t.Desc {
					return !less
				}
				return less
			}
		}
		return result[i].DependencyID < result[j].DependencyID
	})

	return page(result, f.Skip, storage.ClampLimit(f.Limit)), nil
}
