package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// Filter is the one logical filter accepted by the engine. It covers both
// observation-native fields and metadata-joined fields; the caller does not
// need to know which store holds which.
type Filter struct {
	// Observation-side predicates, pushed straight to the scan.
	SeriesIDIn   []int64
	TimestampGTE *time.Time
	TimestampLTE *time.Time
	// TimestampAgo is a humanized relative-time expression ("1y", "6mo");
	// it becomes timestamp >= now − duration.
	TimestampAgo *string
	ValueGTE     *decimal.Decimal
	ValueLTE     *decimal.Decimal

	// Metadata-side predicates, resolved to a series_id set first.
	SeriesNameILike *string
	SeriesNameIn    []string
	TickerILike     *string
	IsActive        *bool
	IsDerived       *bool

	// DimensionNameIn holds one __in predicate per lookup dimension, e.g.
	// asset_class → ["Commodity"]. Values are validated against the current
	// dimension snapshot.
	DimensionNameIn map[domain.Dimension][]string

	// OrderBy lists observation fields, '-' prefix for descending.
	// Defaults to descending timestamp.
	OrderBy []string
	Skip    int
	Limit   int
}

// HasSeriesNamePredicate reports whether the filter carries a usable series
// name restriction: a non-blank __ilike or at least one non-blank name in
// __in.
func (f *Filter) HasSeriesNamePredicate() bool {
	if f.SeriesNameILike != nil && strings.TrimSpace(*f.SeriesNameILike) != "" {
		return true
	}
	for _, n := range f.SeriesNameIn {
		if strings.TrimSpace(n) != "" {
			return true
		}
	}
	return false
}

// metadataPredicates extracts the relational-side predicates.
func (f *Filter) metadataPredicates() storage.MetadataPredicates {
	p := storage.MetadataPredicates{
		TickerILike: f.TickerILike,
		IsActive:    f.IsActive,
		IsDerived:   f.IsDerived,
	}
	if f.SeriesNameILike != nil && strings.TrimSpace(*f.SeriesNameILike) != "" {
		p.SeriesNameILike = f.SeriesNameILike
	}
	// Blank entries in series_name__in are dropped; names match
	// case-insensitively.
	for _, n := range f.SeriesNameIn {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			p.SeriesNameIn = append(p.SeriesNameIn, trimmed)
		}
	}
	for dim, names := range f.DimensionNameIn {
		if len(names) == 0 {
			continue
		}
		if p.DimensionNameIn == nil {
			p.DimensionNameIn = make(map[domain.Dimension][]string)
		}
		p.DimensionNameIn[dim] = names
	}
	return p
}

// observationFilter builds the scan filter from the observation-native
// predicates plus the resolved series_id restriction.
func (f *Filter) observationFilter(floor *time.Time) storage.ObservationFilter {
	of := storage.ObservationFilter{
		SeriesIDIn:   f.SeriesIDIn,
		TimestampGTE: f.TimestampGTE,
		TimestampLTE: f.TimestampLTE,
		ValueGTE:     f.ValueGTE,
		ValueLTE:     f.ValueLTE,
		OrderBy:      f.OrderBy,
		Skip:         f.Skip,
		Limit:        storage.ClampLimit(f.Limit),
	}
	// A relative-time floor tightens (never loosens) an explicit lower
	// bound.
	if floor != nil && (of.TimestampGTE == nil || floor.After(*of.TimestampGTE)) {
		of.TimestampGTE = floor
	}
	return of
}

// intersect restricts ids to those also present in resolved, preserving the
// order of ids.
func intersect(ids, resolved []int64) []int64 {
	if len(ids) == 0 {
		return resolved
	}
	set := make(map[int64]struct{}, len(resolved))
	for _, id := range resolved {
		set[id] = struct{}{}
	}
	var out []int64
	for _, id := range ids {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
