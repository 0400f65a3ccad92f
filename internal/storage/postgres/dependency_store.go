package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

const dependencyCols = `
	dependency_id, parent_series_id, child_series_id,
	dependency_type, weight, formula, is_active,
	valid_from, valid_to, created_at`

var dependencyOrderFields = map[string]bool{
	"dependency_id":    true,
	"parent_series_id": true,
	"child_series_id":  true,
	"created_at":       true,
}

// DependencyStore implements storage.DependencyStore using PostgreSQL.
type DependencyStore struct {
	pool *Pool
}

// NewDependencyStore creates a new DependencyStore.
func NewDependencyStore(pool *Pool) *DependencyStore {
	return &DependencyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DependencyStore = (*DependencyStore)(nil)

// Create inserts a parent→child edge. A missing parent or child series
// surfaces as ErrForeignKeyViolation.
func (s *DependencyStore) Create(ctx context.Context, e *domain.DependencyEdge) (*domain.DependencyEdge, error) {
	query := `
		INSERT INTO series_dependency_graph (
			parent_series_id, child_series_id,
			dependency_type, weight, formula, is_active,
			valid_from, valid_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING` + dependencyCols

	row := s.pool.QueryRow(ctx, query,
		e.ParentSeriesID, e.ChildSeriesID,
		e.DependencyType, nullDecimal(e.Weight), e.Formula, e.IsActive,
		e.ValidFrom, e.ValidTo,
	)

	created, err := scanDependencyEdge(row)
	if err != nil {
		return nil, classify("create dependency", err)
	}
	return created, nil
}

// GetByID retrieves an edge. Returns ErrNotFound if not exists.
func (s *DependencyStore) GetByID(ctx context.Context, dependencyID int64) (*domain.DependencyEdge, error) {
	query := `SELECT` + dependencyCols + ` FROM series_dependency_graph WHERE dependency_id = $1`

	row := s.pool.QueryRow(ctx, query, dependencyID)
	e, err := scanDependencyEdge(row)
	if err != nil {
		return nil, classify("get dependency", err)
	}
	return e, nil
}

// List retrieves edges matching the filter.
func (s *DependencyStore) List(ctx context.Context, f storage.DependencyFilter) ([]*domain.DependencyEdge, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, dependencyOrderFields)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.ParentSeriesIDIn) > 0 {
		conds = append(conds, "parent_series_id = ANY("+arg(f.ParentSeriesIDIn)+")")
	}
	if len(f.ChildSeriesIDIn) > 0 {
		conds = append(conds, "child_series_id = ANY("+arg(f.ChildSeriesIDIn)+")")
	}
	if f.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*f.IsActive))
	}
	if len(f.DependencyTypeIn) > 0 {
		conds = append(conds, "dependency_type = ANY("+arg(f.DependencyTypeIn)+")")
	}

	query := `SELECT` + dependencyCols + ` FROM series_dependency_graph`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(terms) == 0 {
		query += " ORDER BY dependency_id ASC"
	} else {
		query += " ORDER BY " + storage.OrderClause(terms)
	}
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", arg(f.Skip), arg(storage.ClampLimit(f.Limit)))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list dependencies", err)
	}
	defer rows.Close()

	var edges []*domain.DependencyEdge
	for rows.Next() {
		e, err := scanDependencyEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dependency row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate dependency rows", err)
	}
	return edges, nil
}

// scanDependencyEdge scans a single row into a DependencyEdge.
func scanDependencyEdge(row pgx.Row) (*domain.DependencyEdge, error) {
	var e domain.DependencyEdge
	var weight decimal.NullDecimal

	err := row.Scan(
		&e.DependencyID, &e.ParentSeriesID, &e.ChildSeriesID,
		&e.DependencyType, &weight, &e.Formula, &e.IsActive,
		&e.ValidFrom, &e.ValidTo, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if weight.Valid {
		e.Weight = &weight.Decimal
	}
	return &e, nil
}
