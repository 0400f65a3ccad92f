package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

const calculationCols = `
	calculation_id, derived_series_id, calculation_method,
	input_series_ids, calculation_parameters,
	calculation_status, error_message, execution_time_ms,
	calculated_at, last_calculated, calculated_by, calculation_policy`

var calculationOrderFields = map[string]bool{
	"calculation_id":    true,
	"derived_series_id": true,
	"calculated_at":     true,
	"last_calculated":   true,
}

// CalculationStore implements storage.CalculationStore using PostgreSQL.
// input_series_ids is a BIGINT[] column and calculation_parameters is JSONB;
// pgx encodes both natively.
type CalculationStore struct {
	pool *Pool
}

// NewCalculationStore creates a new CalculationStore.
func NewCalculationStore(pool *Pool) *CalculationStore {
	return &CalculationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CalculationStore = (*CalculationStore)(nil)

// Create appends a ledger entry. A missing derived series surfaces as
// ErrForeignKeyViolation.
func (s *CalculationStore) Create(ctx context.Context, e *domain.CalculationLogEntry) (*domain.CalculationLogEntry, error) {
	query := `
		INSERT INTO calculation_log (
			derived_series_id, calculation_method,
			input_series_ids, calculation_parameters,
			calculation_status, error_message, execution_time_ms,
			calculated_at, last_calculated, calculated_by, calculation_policy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, coalesce($8, now()), $9, $10, $11)
		RETURNING` + calculationCols

	row := s.pool.QueryRow(ctx, query,
		e.DerivedSeriesID, e.CalculationMethod,
		e.InputSeriesIDs, e.CalculationParameters,
		e.CalculationStatus, e.ErrorMessage, e.ExecutionTimeMs,
		e.CalculatedAt, e.LastCalculated, e.CalculatedBy, e.CalculationPolicy,
	)

	created, err := scanCalculationEntry(row)
	if err != nil {
		return nil, classify("create calculation", err)
	}
	return created, nil
}

// GetByID retrieves a ledger entry. Returns ErrNotFound if not exists.
func (s *CalculationStore) GetByID(ctx context.Context, calculationID int64) (*domain.CalculationLogEntry, error) {
	query := `SELECT` + calculationCols + ` FROM calculation_log WHERE calculation_id = $1`

	row := s.pool.QueryRow(ctx, query, calculationID)
	e, err := scanCalculationEntry(row)
	if err != nil {
		return nil, classify("get calculation", err)
	}
	return e, nil
}

// List retrieves ledger entries matching the filter.
func (s *CalculationStore) List(ctx context.Context, f storage.CalculationFilter) ([]*domain.CalculationLogEntry, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, calculationOrderFields)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.DerivedSeriesIDIn) > 0 {
		conds = append(conds, "derived_series_id = ANY("+arg(f.DerivedSeriesIDIn)+")")
	}
	if len(f.StatusIn) > 0 {
		conds = append(conds, "calculation_status = ANY("+arg(f.StatusIn)+")")
	}
	if len(f.MethodIn) > 0 {
		conds = append(conds, "calculation_method = ANY("+arg(f.MethodIn)+")")
	}
	if f.CalculatedAtGTE != nil {
		conds = append(conds, "calculated_at >= "+arg(*f.CalculatedAtGTE))
	}
	if f.CalculatedAtLTE != nil {
		conds = append(conds, "calculated_at <= "+arg(*f.CalculatedAtLTE))
	}

	query := `SELECT` + calculationCols + ` FROM calculation_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(terms) == 0 {
		query += " ORDER BY calculated_at DESC"
	} else {
		query += " ORDER BY " + storage.OrderClause(terms)
	}
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", arg(f.Skip), arg(storage.ClampLimit(f.Limit)))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list calculations", err)
	}
	defer rows.Close()

	var entries []*domain.CalculationLogEntry
	for rows.Next() {
		e, err := scanCalculationEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calculation row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate calculation rows", err)
	}
	return entries, nil
}

// scanCalculationEntry scans a single row into a CalculationLogEntry.
func scanCalculationEntry(row pgx.Row) (*domain.CalculationLogEntry, error) {
	var e domain.CalculationLogEntry

	err := row.Scan(
		&e.CalculationID, &e.DerivedSeriesID, &e.CalculationMethod,
		&e.InputSeriesIDs, &e.CalculationParameters,
		&e.CalculationStatus, &e.ErrorMessage, &e.ExecutionTimeMs,
		&e.CalculatedAt, &e.LastCalculated, &e.CalculatedBy, &e.CalculationPolicy,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
