package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// dimensionSpec maps a classification dimension to its table layout. One
// table per dimension, each with an id and a unique name column.
type dimensionSpec struct {
	table     string
	idCol     string
	nameCol   string
	hasCode   bool // ticker_source carries a code column
	hasParent bool // sub_asset_class references asset_class
}

var dimensionSpecs = map[domain.Dimension]dimensionSpec{
	domain.DimensionAssetClass:    {table: "asset_class_lookup", idCol: "asset_class_id", nameCol: "asset_class_name"},
	domain.DimensionSubAssetClass: {table: "sub_asset_class_lookup", idCol: "sub_asset_class_id", nameCol: "sub_asset_class_name", hasParent: true},
	domain.DimensionProductType:   {table: "product_type_lookup", idCol: "product_type_id", nameCol: "product_type_name"},
	domain.DimensionDataType:      {table: "data_type_lookup", idCol: "data_type_id", nameCol: "data_type_name"},
	domain.DimensionStructureType: {table: "structure_type_lookup", idCol: "structure_type_id", nameCol: "structure_type_name"},
	domain.DimensionMarketSegment: {table: "market_segment_lookup", idCol: "market_segment_id", nameCol: "market_segment_name"},
	domain.DimensionFieldType:     {table: "field_type_lookup", idCol: "field_type_id", nameCol: "field_type_name"},
	domain.DimensionTickerSource:  {table: "ticker_source_lookup", idCol: "ticker_source_id", nameCol: "ticker_source_name", hasCode: true},
}

var lookupOrderFields = map[string]bool{
	"id":         true,
	"name":       true,
	"created_at": true,
	"updated_at": true,
}

// LookupStore implements storage.LookupStore using PostgreSQL, one table per
// dimension.
type LookupStore struct {
	pool *Pool
}

// NewLookupStore creates a new LookupStore.
func NewLookupStore(pool *Pool) *LookupStore {
	return &LookupStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LookupStore = (*LookupStore)(nil)

// Create inserts a new lookup entry. Returns ErrDuplicateKey if the name
// already exists within the dimension.
func (s *LookupStore) Create(ctx context.Context, e *domain.LookupEntry) (*domain.LookupEntry, error) {
	spec, ok := dimensionSpecs[e.Dimension]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, e.Dimension)
	}

	cols := []string{spec.nameCol, "description"}
	args := []any{e.Name, e.Description}
	if spec.hasCode {
		cols = append(cols, "ticker_source_code")
		args = append(args, e.Code)
	}
	if spec.hasParent {
		cols = append(cols, "asset_class_id")
		args = append(args, e.ParentID)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (%s)
		RETURNING %s
	`, spec.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), lookupSelectCols(spec))

	row := s.pool.QueryRow(ctx, query, args...)
	created, err := scanLookupEntry(row, e.Dimension, spec)
	if err != nil {
		return nil, classify("create lookup entry", err)
	}
	return created, nil
}

// GetByID retrieves an entry. Returns ErrNotFound if not exists.
func (s *LookupStore) GetByID(ctx context.Context, dim domain.Dimension, id int64) (*domain.LookupEntry, error) {
	spec, ok := dimensionSpecs[dim]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE %s = $1
	`, lookupSelectCols(spec), spec.table, spec.idCol)

	row := s.pool.QueryRow(ctx, query, id)
	e, err := scanLookupEntry(row, dim, spec)
	if err != nil {
		return nil, classify("get lookup entry", err)
	}
	return e, nil
}

// List retrieves entries matching the filter.
func (s *LookupStore) List(ctx context.Context, dim domain.Dimension, f storage.LookupFilter) ([]*domain.LookupEntry, error) {
	spec, ok := dimensionSpecs[dim]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	terms, err := storage.ParseOrderBy(f.OrderBy, lookupOrderFields)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.IDIn) > 0 {
		conds = append(conds, fmt.Sprintf("%s = ANY(%s)", spec.idCol, arg(f.IDIn)))
	}
	if f.NameILike != nil {
		conds = append(conds, fmt.Sprintf("%s ILIKE %s", spec.nameCol, arg("%"+*f.NameILike+"%")))
	}
	if len(f.NameIn) > 0 {
		conds = append(conds, fmt.Sprintf("%s = ANY(%s)", spec.nameCol, arg(f.NameIn)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", lookupSelectCols(spec), spec.table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + lookupOrderClause(terms, spec)
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", arg(f.Skip), arg(storage.ClampLimit(f.Limit)))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list lookup entries", err)
	}
	defer rows.Close()

	var entries []*domain.LookupEntry
	for rows.Next() {
		e, err := scanLookupEntry(rows, dim, spec)
		if err != nil {
			return nil, fmt.Errorf("scan lookup row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate lookup rows", err)
	}
	return entries, nil
}

// Update applies a partial update and touches updated_at.
func (s *LookupStore) Update(ctx context.Context, dim domain.Dimension, id int64, upd storage.LookupUpdate) (*domain.LookupEntry, error) {
	spec, ok := dimensionSpecs[dim]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("%s = %s", spec.nameCol, arg(*upd.Name)))
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = %s", arg(*upd.Description)))
	}
	if upd.Code != nil && spec.hasCode {
		sets = append(sets, fmt.Sprintf("ticker_source_code = %s", arg(*upd.Code)))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`
		UPDATE %s SET %s WHERE %s = %s
		RETURNING %s
	`, spec.table, strings.Join(sets, ", "), spec.idCol, arg(id), lookupSelectCols(spec))

	row := s.pool.QueryRow(ctx, query, args...)
	e, err := scanLookupEntry(row, dim, spec)
	if err != nil {
		return nil, classify("update lookup entry", err)
	}
	return e, nil
}

// Names returns all names of a dimension, sorted and de-duplicated. Used to
// build dimension value snapshots.
func (s *LookupStore) Names(ctx context.Context, dim domain.Dimension) ([]string, error) {
	spec, ok := dimensionSpecs[dim]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", spec.nameCol, spec.table, spec.nameCol)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, classify("list lookup names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan lookup name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate lookup names", err)
	}
	return names, nil
}

// lookupSelectCols renders the SELECT column list for a dimension. Missing
// optional columns are selected as NULL so every dimension scans uniformly.
func lookupSelectCols(spec dimensionSpec) string {
	code := "NULL::text"
	if spec.hasCode {
		code = "ticker_source_code"
	}
	parent := "NULL::bigint"
	if spec.hasParent {
		parent = "asset_class_id"
	}
	return fmt.Sprintf("%s, %s, description, %s, %s, created_at, updated_at",
		spec.idCol, spec.nameCol, code, parent)
}

// lookupOrderClause renders parsed order terms against the dimension's
// actual column names.
func lookupOrderClause(terms []storage.OrderTerm, spec dimensionSpec) string {
	if len(terms) == 0 {
		return spec.idCol + " ASC"
	}
	mapped := make([]storage.OrderTerm, len(terms))
	for i, t := range terms {
		switch t.Field {
		case "id":
			t.Field = spec.idCol
		case "name":
			t.Field = spec.nameCol
		}
		mapped[i] = t
	}
	return storage.OrderClause(mapped)
}

// scanLookupEntry scans a single row into a LookupEntry.
func scanLookupEntry(row pgx.Row, dim domain.Dimension, _ dimensionSpec) (*domain.LookupEntry, error) {
	var e domain.LookupEntry
	e.Dimension = dim

	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.Code,
		&e.ParentID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
