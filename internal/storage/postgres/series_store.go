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

const seriesCols = `
	series_id, series_name,
	asset_class_id, sub_asset_class_id, product_type_id, data_type_id,
	structure_type_id, market_segment_id, field_type_id, ticker_source_id,
	ticker, version_number, is_active, is_derived,
	calculation_method, data_quality_score, source, confidence_level,
	effective_date, as_of_date, valid_from, valid_to,
	created_at, updated_at`

var seriesOrderFields = map[string]bool{
	"series_id":      true,
	"series_name":    true,
	"ticker":         true,
	"version_number": true,
	"created_at":     true,
	"updated_at":     true,
	"effective_date": true,
	"as_of_date":     true,
}

// SeriesStore implements storage.SeriesStore using PostgreSQL.
type SeriesStore struct {
	pool *Pool
}

// NewSeriesStore creates a new SeriesStore.
func NewSeriesStore(pool *Pool) *SeriesStore {
	return &SeriesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SeriesStore = (*SeriesStore)(nil)

// Create inserts a new series. A version of 0 defaults to 1. Lookup
// references surface as ErrForeignKeyViolation at exec time.
func (s *SeriesStore) Create(ctx context.Context, series *domain.Series) (*domain.Series, error) {
	version := series.VersionNumber
	if version == 0 {
		version = 1
	}

	query := `
		INSERT INTO meta_series (
			series_name,
			asset_class_id, sub_asset_class_id, product_type_id, data_type_id,
			structure_type_id, market_segment_id, field_type_id, ticker_source_id,
			ticker, version_number, is_active, is_derived,
			calculation_method, data_quality_score, source, confidence_level,
			effective_date, as_of_date, valid_from, valid_to
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21
		)
		RETURNING` + seriesCols

	row := s.pool.QueryRow(ctx, query,
		series.SeriesName,
		series.AssetClassID, series.SubAssetClassID, series.ProductTypeID, series.DataTypeID,
		series.StructureTypeID, series.MarketSegmentID, series.FieldTypeID, series.TickerSourceID,
		series.Ticker, version, series.IsActive, series.IsDerived,
		series.CalculationMethod, nullDecimal(series.DataQualityScore), nullSource(series.Source), series.ConfidenceLevel,
		series.EffectiveDate, series.AsOfDate, series.ValidFrom, series.ValidTo,
	)

	created, err := scanSeries(row)
	if err != nil {
		return nil, classify("create series", err)
	}
	return created, nil
}

// GetByID retrieves a series. Returns ErrNotFound if not exists.
func (s *SeriesStore) GetByID(ctx context.Context, seriesID int64) (*domain.Series, error) {
	query := `SELECT` + seriesCols + ` FROM meta_series WHERE series_id = $1`

	row := s.pool.QueryRow(ctx, query, seriesID)
	series, err := scanSeries(row)
	if err != nil {
		return nil, classify("get series", err)
	}
	return series, nil
}

// List retrieves series matching the filter.
func (s *SeriesStore) List(ctx context.Context, f storage.SeriesFilter) ([]*domain.Series, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, seriesOrderFields)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.SeriesIDIn) > 0 {
		conds = append(conds, "series_id = ANY("+arg(f.SeriesIDIn)+")")
	}
	if f.SeriesNameILike != nil {
		conds = append(conds, "series_name ILIKE "+arg("%"+*f.SeriesNameILike+"%"))
	}
	if len(f.SeriesNameIn) > 0 {
		conds = append(conds, "lower(series_name) = ANY("+arg(lowerAll(f.SeriesNameIn))+")")
	}
	if f.TickerILike != nil {
		conds = append(conds, "ticker ILIKE "+arg("%"+*f.TickerILike+"%"))
	}
	if f.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*f.IsActive))
	}
	if f.IsDerived != nil {
		conds = append(conds, "is_derived = "+arg(*f.IsDerived))
	}

	dimCols := []struct {
		col string
		ids []int64
	}{
		{"asset_class_id", f.AssetClassIDIn},
		{"sub_asset_class_id", f.SubAssetClassIDIn},
		{"product_type_id", f.ProductTypeIDIn},
		{"data_type_id", f.DataTypeIDIn},
		{"structure_type_id", f.StructureTypeIDIn},
		{"market_segment_id", f.MarketSegmentIDIn},
		{"field_type_id", f.FieldTypeIDIn},
		{"ticker_source_id", f.TickerSourceIDIn},
	}
	for _, d := range dimCols {
		if len(d.ids) > 0 {
			conds = append(conds, d.col+" = ANY("+arg(d.ids)+")")
		}
	}

	query := `SELECT` + seriesCols + ` FROM meta_series`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(terms) == 0 {
		query += " ORDER BY series_id ASC"
	} else {
		query += " ORDER BY " + storage.OrderClause(terms)
	}
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", arg(f.Skip), arg(storage.ClampLimit(f.Limit)))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list series", err)
	}
	defer rows.Close()

	var result []*domain.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		result = append(result, series)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate series rows", err)
	}
	return result, nil
}

// Update applies a partial update and touches updated_at.
func (s *SeriesStore) Update(ctx context.Context, seriesID int64, upd domain.SeriesUpdate) (*domain.Series, error) {
	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	set := func(col string, v any) {
		sets = append(sets, col+" = "+arg(v))
	}

	if upd.SeriesName != nil {
		set("series_name", *upd.SeriesName)
	}
	if upd.AssetClassID != nil {
		set("asset_class_id", *upd.AssetClassID)
	}
	if upd.SubAssetClassID != nil {
		set("sub_asset_class_id", *upd.SubAssetClassID)
	}
	if upd.ProductTypeID != nil {
		set("product_type_id", *upd.ProductTypeID)
	}
	if upd.DataTypeID != nil {
		set("data_type_id", *upd.DataTypeID)
	}
	if upd.StructureTypeID != nil {
		set("structure_type_id", *upd.StructureTypeID)
	}
	if upd.MarketSegmentID != nil {
		set("market_segment_id", *upd.MarketSegmentID)
	}
	if upd.FieldTypeID != nil {
		set("field_type_id", *upd.FieldTypeID)
	}
	if upd.TickerSourceID != nil {
		set("ticker_source_id", *upd.TickerSourceID)
	}
	if upd.Ticker != nil {
		set("ticker", *upd.Ticker)
	}
	if upd.VersionNumber != nil {
		set("version_number", *upd.VersionNumber)
	}
	if upd.IsActive != nil {
		set("is_active", *upd.IsActive)
	}
	if upd.IsDerived != nil {
		set("is_derived", *upd.IsDerived)
	}
	if upd.CalculationMethod != nil {
		set("calculation_method", *upd.CalculationMethod)
	}
	if upd.DataQualityScore != nil {
		set("data_quality_score", *upd.DataQualityScore)
	}
	if upd.Source != nil {
		set("source", string(*upd.Source))
	}
	if upd.ConfidenceLevel != nil {
		set("confidence_level", *upd.ConfidenceLevel)
	}
	if upd.EffectiveDate != nil {
		set("effective_date", *upd.EffectiveDate)
	}
	if upd.AsOfDate != nil {
		set("as_of_date", *upd.AsOfDate)
	}
	if upd.ValidFrom != nil {
		set("valid_from", *upd.ValidFrom)
	}
	if upd.ValidTo != nil {
		set("valid_to", *upd.ValidTo)
	}

	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`
		UPDATE meta_series SET %s WHERE series_id = %s
		RETURNING`+seriesCols, strings.Join(sets, ", "), arg(seriesID))

	row := s.pool.QueryRow(ctx, query, args...)
	series, err := scanSeries(row)
	if err != nil {
		return nil, classify("update series", err)
	}
	return series, nil
}

// SoftDelete sets is_active=false. updated_at is touched only on the first
// transition; repeating the call is a no-op returning the same state.
func (s *SeriesStore) SoftDelete(ctx context.Context, seriesID int64) (*domain.Series, error) {
	query := `
		UPDATE meta_series
		SET updated_at = CASE WHEN is_active THEN now() ELSE updated_at END,
		    is_active = FALSE
		WHERE series_id = $1
		RETURNING` + seriesCols

	row := s.pool.QueryRow(ctx, query, seriesID)
	series, err := scanSeries(row)
	if err != nil {
		return nil, classify("soft delete series", err)
	}
	return series, nil
}

// ResolveIDs runs the metadata resolution pass. Only dimensions that carry
// an active name predicate are joined; a filter over two dimensions costs
// two joins, never eight.
func (s *SeriesStore) ResolveIDs(ctx context.Context, p storage.MetadataPredicates) ([]int64, error) {
	var conds []string
	var joins []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if p.SeriesNameILike != nil {
		conds = append(conds, "ms.series_name ILIKE "+arg("%"+*p.SeriesNameILike+"%"))
	}
	if len(p.SeriesNameIn) > 0 {
		conds = append(conds, "lower(ms.series_name) = ANY("+arg(lowerAll(p.SeriesNameIn))+")")
	}
	if p.TickerILike != nil {
		conds = append(conds, "ms.ticker ILIKE "+arg("%"+*p.TickerILike+"%"))
	}
	if p.IsActive != nil {
		conds = append(conds, "ms.is_active = "+arg(*p.IsActive))
	}
	if p.IsDerived != nil {
		conds = append(conds, "ms.is_derived = "+arg(*p.IsDerived))
	}

	// Lazy joins: iterate dimensions in stable order so the generated SQL
	// is deterministic.
	for _, dim := range domain.Dimensions {
		names, ok := p.DimensionNameIn[dim]
		if !ok || len(names) == 0 {
			continue
		}
		spec := dimensionSpecs[dim]
		alias := string(dim)
		joins = append(joins, fmt.Sprintf(
			"JOIN %s %s ON ms.%s = %s.%s", spec.table, alias, spec.idCol, alias, spec.idCol))
		conds = append(conds, fmt.Sprintf("%s.%s = ANY(%s)", alias, spec.nameCol, arg(names)))
	}

	query := "SELECT DISTINCT ms.series_id FROM meta_series ms"
	if len(joins) > 0 {
		query += " " + strings.Join(joins, " ")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("resolve series ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan resolved id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate resolved ids", err)
	}
	return ids, nil
}

// GetMetadata fetches grouped-response metadata blocks for the given ids in
// one query, lookup names resolved via LEFT JOINs.
func (s *SeriesStore) GetMetadata(ctx context.Context, seriesIDs []int64) (map[int64]*domain.SeriesMetadata, error) {
	if len(seriesIDs) == 0 {
		return map[int64]*domain.SeriesMetadata{}, nil
	}

	query := `
		SELECT
			ms.series_id, ms.series_name, ms.ticker, ms.is_active, ms.is_derived, ms.version_number,
			ac.asset_class_name, sac.sub_asset_class_name, pt.product_type_name, dt.data_type_name,
			st.structure_type_name, mseg.market_segment_name, ft.field_type_name, ts.ticker_source_name
		FROM meta_series ms
		LEFT JOIN asset_class_lookup ac ON ms.asset_class_id = ac.asset_class_id
		LEFT JOIN sub_asset_class_lookup sac ON ms.sub_asset_class_id = sac.sub_asset_class_id
		LEFT JOIN product_type_lookup pt ON ms.product_type_id = pt.product_type_id
		LEFT JOIN data_type_lookup dt ON ms.data_type_id = dt.data_type_id
		LEFT JOIN structure_type_lookup st ON ms.structure_type_id = st.structure_type_id
		LEFT JOIN market_segment_lookup mseg ON ms.market_segment_id = mseg.market_segment_id
		LEFT JOIN field_type_lookup ft ON ms.field_type_id = ft.field_type_id
		LEFT JOIN ticker_source_lookup ts ON ms.ticker_source_id = ts.ticker_source_id
		WHERE ms.series_id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, seriesIDs)
	if err != nil {
		return nil, classify("get series metadata", err)
	}
	defer rows.Close()

	blocks := make(map[int64]*domain.SeriesMetadata, len(seriesIDs))
	for rows.Next() {
		var m domain.SeriesMetadata
		err := rows.Scan(
			&m.SeriesID, &m.SeriesName, &m.Ticker, &m.IsActive, &m.IsDerived, &m.VersionNumber,
			&m.AssetClassName, &m.SubAssetClassName, &m.ProductTypeName, &m.DataTypeName,
			&m.StructureTypeName, &m.MarketSegmentName, &m.FieldTypeName, &m.TickerSourceName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan series metadata row: %w", err)
		}
		blocks[m.SeriesID] = &m
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate series metadata rows", err)
	}
	return blocks, nil
}

// nullDecimal converts an optional decimal for insertion.
func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// nullSource converts an optional data source for insertion.
func nullSource(src *domain.DataSource) *string {
	if src == nil {
		return nil
	}
	s := string(*src)
	return &s
}

func lowerAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(strings.TrimSpace(n))
	}
	return out
}

// scanSeries scans a single row into a Series.
func scanSeries(row pgx.Row) (*domain.Series, error) {
	var s domain.Series
	var score decimal.NullDecimal
	var source *string

	err := row.Scan(
		&s.SeriesID, &s.SeriesName,
		&s.AssetClassID, &s.SubAssetClassID, &s.ProductTypeID, &s.DataTypeID,
		&s.StructureTypeID, &s.MarketSegmentID, &s.FieldTypeID, &s.TickerSourceID,
		&s.Ticker, &s.VersionNumber, &s.IsActive, &s.IsDerived,
		&s.CalculationMethod, &score, &source, &s.ConfidenceLevel,
		&s.EffectiveDate, &s.AsOfDate, &s.ValidFrom, &s.ValidTo,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		s.DataQualityScore = &score.Decimal
	}
	if source != nil {
		src := domain.DataSource(*source)
		s.Source = &src
	}
	return &s, nil
}
