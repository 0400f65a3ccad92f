package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
)

// DefaultLimit bounds list results when the caller does not set a limit.
const DefaultLimit = 100

// MaxLimit is the hard upper bound on any list result.
const MaxLimit = 1000

// ClampLimit normalizes a caller-supplied limit into [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LookupFilter selects rows of one lookup dimension.
type LookupFilter struct {
	IDIn      []int64
	NameILike *string
	NameIn    []string
	OrderBy   []string
	Skip      int
	Limit     int
}

// LookupUpdate is a partial update to a lookup entry. Nil fields are left
// unchanged; any update touches updated_at.
type LookupUpdate struct {
	Name        *string
	Description *string
	Code        *string
}

// SeriesFilter selects series registry rows.
type SeriesFilter struct {
	SeriesIDIn      []int64
	SeriesNameILike *string
	SeriesNameIn    []string
	TickerILike     *string
	IsActive        *bool
	IsDerived       *bool

	AssetClassIDIn    []int64
	SubAssetClassIDIn []int64
	ProductTypeIDIn   []int64
	DataTypeIDIn      []int64
	StructureTypeIDIn []int64
	MarketSegmentIDIn []int64
	FieldTypeIDIn     []int64
	TickerSourceIDIn  []int64

	OrderBy []string
	Skip    int
	Limit   int
}

// MetadataPredicates are the descriptive predicates of a logical query that
// live on the relational side. The resolution pass turns them into a
// series_id set; only dimensions with an active predicate are joined.
type MetadataPredicates struct {
	SeriesNameILike *string
	SeriesNameIn    []string
	TickerILike     *string
	IsActive        *bool
	IsDerived       *bool

	// DimensionNameIn filters by lookup name per dimension, e.g.
	// asset_class → {"Commodity"}.
	DimensionNameIn map[domain.Dimension][]string
}

// Empty reports whether no metadata predicate is set, meaning the resolution
// pass can be skipped entirely.
func (p MetadataPredicates) Empty() bool {
	return p.SeriesNameILike == nil &&
		len(p.SeriesNameIn) == 0 &&
		p.TickerILike == nil &&
		p.IsActive == nil &&
		p.IsDerived == nil &&
		len(p.DimensionNameIn) == 0
}

// ObservationFilter selects rows of the time-series store. All predicates
// here are native to the observation side.
type ObservationFilter struct {
	SeriesIDIn   []int64
	TimestampGTE *time.Time
	TimestampLTE *time.Time
	ValueGTE     *decimal.Decimal
	ValueLTE     *decimal.Decimal

	OrderBy []string
	Skip    int
	Limit   int
}

// DependencyFilter selects dependency edges. IsActive left nil means "any";
// the graph service defaults it to true before calling the store.
type DependencyFilter struct {
	ParentSeriesIDIn []int64
	ChildSeriesIDIn  []int64
	IsActive         *bool
	DependencyTypeIn []string

	OrderBy []string
	Skip    int
	Limit   int
}

// CalculationFilter selects calculation log entries.
type CalculationFilter struct {
	DerivedSeriesIDIn []int64
	StatusIn          []string
	MethodIn          []string
	CalculatedAtGTE   *time.Time
	CalculatedAtLTE   *time.Time

	OrderBy []string
	Skip    int
	Limit   int
}
