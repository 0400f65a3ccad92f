package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

var observationOrderFields = map[string]bool{
	"series_id":  true,
	"timestamp":  true,
	"value":      true,
	"created_at": true,
	"updated_at": true,
}

// ObservationStore implements storage.ObservationStore using ClickHouse.
//
// value_data is a ReplacingMergeTree keyed on (series_id, timestamp) with
// updated_at as the version column. An update is just another insert with a
// newer updated_at; reads go through FINAL so the latest version wins before
// background merges compact the parts.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// Insert adds a single observation.
func (s *ObservationStore) Insert(ctx context.Context, o *domain.Observation) error {
	return s.InsertBulk(ctx, []*domain.Observation{o})
}

// InsertBulk adds multiple observations in one batch. Timestamps are
// normalized to UTC dates; a repeated (series_id, timestamp) within the batch
// or against existing rows is not an error, the newest version wins.
func (s *ObservationStore) InsertBulk(ctx context.Context, observations []*domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	now := time.Now().UTC()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO value_data (
			series_id, timestamp, value, created_at, updated_at
		)
	`)
	if err != nil {
		return classify("prepare observation batch", err)
	}

	for _, o := range observations {
		createdAt := o.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		updatedAt := o.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}

		err = batch.Append(
			o.SeriesID, dateOf(o.Timestamp), o.Value, createdAt, updatedAt,
		)
		if err != nil {
			return classify("append to observation batch", err)
		}
	}

	if err := batch.Send(); err != nil {
		return classify("send observation batch", err)
	}
	return nil
}

// Get retrieves the current version of one observation. Returns ErrNotFound
// if no row exists for the (series_id, timestamp) key.
func (s *ObservationStore) Get(ctx context.Context, seriesID int64, timestamp time.Time) (*domain.Observation, error) {
	query := `
		SELECT series_id, timestamp, value, created_at, updated_at
		FROM value_data FINAL
		WHERE series_id = ? AND timestamp = ?
	`

	rows, err := s.conn.Query(ctx, query, seriesID, dateOf(timestamp))
	if err != nil {
		return nil, classify("get observation", err)
	}
	defer rows.Close()

	observations, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, storage.ErrNotFound
	}
	return observations[0], nil
}

// Scan retrieves observations matching the filter.
func (s *ObservationStore) Scan(ctx context.Context, f storage.ObservationFilter) ([]*domain.Observation, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, observationOrderFields)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any

	if len(f.SeriesIDIn) > 0 {
		conds = append(conds, "series_id IN (?)")
		args = append(args, f.SeriesIDIn)
	}
	if f.TimestampGTE != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, dateOf(*f.TimestampGTE))
	}
	if f.TimestampLTE != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, dateOf(*f.TimestampLTE))
	}
	if f.ValueGTE != nil {
		conds = append(conds, "value >= ?")
		args = append(args, *f.ValueGTE)
	}
	if f.ValueLTE != nil {
		conds = append(conds, "value <= ?")
		args = append(args, *f.ValueLTE)
	}

	query := `
		SELECT series_id, timestamp, value, created_at, updated_at
		FROM value_data FINAL
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(terms) == 0 {
		query += " ORDER BY series_id ASC, timestamp DESC"
	} else {
		query += " ORDER BY " + storage.OrderClause(terms)
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", storage.ClampLimit(f.Limit), f.Skip)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("scan observations", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Update replaces the value at an existing (series_id, timestamp) key by
// inserting a newer version. Returns ErrNotFound if no row exists; created_at
// of the original row is carried forward.
func (s *ObservationStore) Update(ctx context.Context, seriesID int64, timestamp time.Time, value decimal.Decimal) (*domain.Observation, error) {
	existing, err := s.Get(ctx, seriesID, timestamp)
	if err != nil {
		return nil, err
	}

	row := &domain.Observation{
		SeriesID:  seriesID,
		Timestamp: dateOf(timestamp),
		Value:     value,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if !row.UpdatedAt.After(existing.UpdatedAt) {
		// Version column must strictly advance or the replace is a no-op.
		row.UpdatedAt = existing.UpdatedAt.Add(time.Millisecond)
	}

	if err := s.Insert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// scanObservations scans multiple rows.
func scanObservations(rows chRows) ([]*domain.Observation, error) {
	var observations []*domain.Observation

	for rows.Next() {
		var o domain.Observation

		err := rows.Scan(
			&o.SeriesID, &o.Timestamp, &o.Value, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterate observation rows", err)
	}

	return observations, nil
}
