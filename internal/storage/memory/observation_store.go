package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore
// with the same last-write-wins semantics as the ClickHouse store: one
// current version per (series_id, timestamp) key, updates replace in place.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Observation
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]*domain.Observation),
	}
}

var _ storage.ObservationStore = (*ObservationStore)(nil)

// observationKey generates a unique key for an observation.
func observationKey(seriesID int64, timestamp time.Time) string {
	return fmt.Sprintf("%d|%s", seriesID, timestamp.Format("2006-01-02"))
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Insert adds one observation. Re-inserting an existing key replaces the
// value, preserving created_at.
func (s *ObservationStore) Insert(ctx context.Context, o *domain.Observation) error {
	return s.InsertBulk(ctx, []*domain.Observation{o})
}

// InsertBulk adds multiple observations.
func (s *ObservationStore) InsertBulk(_ context.Context, observations []*domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	for _, o := range observations {
		row := *o
		row.Timestamp = dateOf(o.Timestamp)
		if row.CreatedAt.IsZero() {
			row.CreatedAt = ts
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = ts
		}

		key := observationKey(row.SeriesID, row.Timestamp)
		if existing, ok := s.data[key]; ok {
			row.CreatedAt = existing.CreatedAt
		}
		s.data[key] = &row
	}
	return nil
}

// Get retrieves the observation at (seriesID, date). Returns ErrNotFound if
// not exists.
func (s *ObservationStore) Get(_ context.Context, seriesID int64, timestamp time.Time) (*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.data[observationKey(seriesID, dateOf(timestamp))]
	if !ok {
		return nil, storage.ErrNotFound
	}
	row := *o
	return &row, nil
}

// Scan retrieves observations matching the filter.
func (s *ObservationStore) Scan(_ context.Context, f storage.ObservationFilter) ([]*domain.Observation, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, map[string]bool{
		"series_id": true, "timestamp": true, "value": true, "created_at": true, "updated_at": true,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, o := range s.data {
		if len(f.SeriesIDIn) > 0 && !containsInt64(f.SeriesIDIn, o.SeriesID) {
			continue
		}
		if f.TimestampGTE != nil && o.Timestamp.Before(dateOf(*f.TimestampGTE)) {
			continue
		}
		if f.TimestampLTE != nil && o.Timestamp.After(dateOf(*f.TimestampLTE)) {
			continue
		}
		if f.ValueGTE != nil && o.Value.LessThan(*f.ValueGTE) {
			continue
		}
		if f.ValueLTE != nil && o.Value.GreaterThan(*f.ValueLTE) {
			continue
		}
		row := *o
		result = append(result, &row)
	}

	if len(terms) == 0 {
		// ClickHouse store default: series ASC, timestamp DESC.
		sort.Slice(result, func(i, j int) bool {
			if result[i].SeriesID != result[j].SeriesID {
				return result[i].SeriesID < result[j].SeriesID
			}
			return result[i].Timestamp.After(result[j].Timestamp)
		})
	} else {
		sort.Slice(result, func(i, j int) bool {
			for _, t := range terms {
				var less, eq bool
				switch t.Field {
				case "series_id":
					less, eq = result[i].SeriesID < result[j].SeriesID, result[i].SeriesID == result[j].SeriesID
				case "timestamp":
					less, eq = result[i].Timestamp.Before(result[j].Timestamp), result[i].Timestamp.Equal(result[j].Timestamp)
				case "value":
					less, eq = result[i].Value.LessThan(result[j].Value), result[i].Value.Equal(result[j].Value)
				case "created_at":
					less, eq = result[i].CreatedAt.Before(result[j].CreatedAt), result[i].CreatedAt.Equal(result[j].CreatedAt)
				default:
					less, eq = result[i].UpdatedAt.Before(result[j].UpdatedAt), result[i].UpdatedAt.Equal(result[j].UpdatedAt)
				}
				if !eq {
					if t.Desc {
						return !less
					}
					return less
				}
			}
			if result[i].SeriesID != result[j].SeriesID {
				return result[i].SeriesID < result[j].SeriesID
			}
			return result[i].Timestamp.Before(result[j].Timestamp)
		})
	}

	return page(result, f.Skip, storage.ClampLimit(f.Limit)), nil
}

// Update rewrites the value at an existing key. Returns ErrNotFound if the
// key does not exist.
func (s *ObservationStore) Update(_ context.Context, seriesID int64, timestamp time.Time, value decimal.Decimal) (*domain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := observationKey(seriesID, dateOf(timestamp))
	o, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	o.Value = value
	o.UpdatedAt = now()

	row := *o
	return &row, nil
}
