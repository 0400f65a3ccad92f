package memory

import (
	"context"
	"sort"
	"sync"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// CalculationStore is an in-memory implementation of storage.CalculationStore.
type CalculationStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.CalculationLogEntry
	nextID int64
	series *SeriesStore
}

// NewCalculationStore creates a new in-memory calculation store. series may
// be nil to skip reference checks.
func NewCalculationStore(series *SeriesStore) *CalculationStore {
	return &CalculationStore{
		data:   make(map[int64]*domain.CalculationLogEntry),
		nextID: 1,
		series: series,
	}
}

var _ storage.CalculationStore = (*CalculationStore)(nil)

// Create appends a ledger entry. A missing derived series surfaces as
// ErrForeignKeyViolation.
func (s *CalculationStore) Create(ctx context.Context, e *domain.CalculationLogEntry) (*domain.CalculationLogEntry, error) {
	if s.series != nil {
		if _, err := s.series.GetByID(ctx, e.DerivedSeriesID); err != nil {
			return nil, storage.ErrForeignKeyViolation
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *e
	entry.CalculationID = s.nextID
	if entry.CalculatedAt == nil {
		ts := now()
		entry.CalculatedAt = &ts
	}
	entry.InputSeriesIDs = append([]int64(nil), e.InputSeriesIDs...)
	s.nextID++
	s.data[entry.CalculationID] = &entry

	result := entry
	return &result, nil
}

// GetByID retrieves an entry. Returns ErrNotFound if not exists.
func (s *CalculationStore) GetByID(_ context.Context, calculationID int64) (*domain.CalculationLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[calculationID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	entry := *e
	return &entry, nil
}

// List retrieves entries matching the filter, newest first by default.
func (s *CalculationStore) List(_ context.Context, f storage.CalculationFilter) ([]*domain.CalculationLogEntry, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, map[string]bool{
		"calculation_id": true, "derived_series_id": true, "calculated_at": true, "last_calculated": true,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CalculationLogEntry
	for _, e := range s.data {
		if len(f.DerivedSeriesIDIn) > 0 && !containsInt64(f.DerivedSeriesIDIn, e.DerivedSeriesID) {
			continue
		}
		if len(f.StatusIn) > 0 {
			if e.CalculationStatus == nil || !containsString(f.StatusIn, *e.CalculationStatus) {
				continue
			}
		}
		if len(f.MethodIn) > 0 {
			if e.CalculationMethod == nil || !containsString(f.MethodIn, *e.CalculationMethod) {
				continue
			}
		}
		if f.CalculatedAtGTE != nil && (e.CalculatedAt == nil || e.CalculatedAt.Before(*f.CalculatedAtGTE)) {
			continue
		}
		if f.CalculatedAtLTE != nil && (e.CalculatedAt == nil || e.CalculatedAt.After(*f.CalculatedAtLTE)) {
			continue
		}
		entry := *e
		result = append(result, &entry)
	}

	if len(terms) == 0 {
		// Relational store default: calculated_at DESC.
		sort.Slice(result, func(i, j int) bool {
			ti, tj := result[i].CalculatedAt, result[j].CalculatedAt
			if ti != nil && tj != nil && !ti.Equal(*tj) {
				return ti.After(*tj)
			}
			return result[i].CalculationID > result[j].CalculationID
		})
	} else {
		sort.Slice(result, func(i, j int) bool {
			for _, t := range terms {
				var less, eq bool
				switch t.Field {
				case "derived_series_id":
					less, eq = result[i].DerivedSeriesID < result[j].DerivedSeriesID, result[i].DerivedSeriesID == result[j].DerivedSeriesID
				case "calculated_at":
					less, eq = timeLess(result[i].CalculatedAt, result[j].CalculatedAt), timeEqual(result[i].CalculatedAt, result[j].CalculatedAt)
				case "last_calculated":
					less, eq = timeLess(result[i].LastCalculated, result[j].LastCalculated), timeEqual(result[i].LastCalculated, result[j].LastCalculated)
				default:
					less, eq = result[i].CalculationID < result[j].CalculationID, result[i].CalculationID == result[j].CalculationID
				}
				if !eq {
					if t.Desc {
						return !less
					}
					return less
				}
			}
			return result[i].CalculationID < result[j].CalculationID
		})
	}

	return page(result, f.Skip, storage.ClampLimit(f.Limit)), nil
}
