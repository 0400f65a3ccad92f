package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// SeriesStore is an in-memory implementation of storage.SeriesStore. It
// holds a reference to the lookup store so dimension name predicates and
// metadata blocks resolve against the same catalog.
type SeriesStore struct {
	mu      sync.RWMutex
	data    map[int64]*domain.Series
	nextID  int64
	lookups *LookupStore
}

// NewSeriesStore creates a new in-memory series store backed by the given
// lookup catalog.
func NewSeriesStore(lookups *LookupStore) *SeriesStore {
	return &SeriesStore{
		data:    make(map[int64]*domain.Series),
		nextID:  1,
		lookups: lookups,
	}
}

var _ storage.SeriesStore = (*SeriesStore)(nil)

// Create inserts a new series. A version of 0 defaults to 1. Dimension
// references are checked against the lookup catalog to mirror the relational
// store's foreign keys.
func (s *SeriesStore) Create(_ context.Context, series *domain.Series) (*domain.Series, error) {
	if err := s.checkReferences(series); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	row := *series
	row.SeriesID = s.nextID
	if row.VersionNumber == 0 {
		row.VersionNumber = 1
	}
	row.CreatedAt = ts
	row.UpdatedAt = ts
	s.nextID++
	s.data[row.SeriesID] = &row

	result := row
	return &result, nil
}

// GetByID retrieves a series. Returns ErrNotFound if not exists.
func (s *SeriesStore) GetByID(_ context.Context, seriesID int64) (*domain.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.data[seriesID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	row := *series
	return &row, nil
}

// List retrieves series matching the filter, ordered by series_id unless the
// filter says otherwise.
func (s *SeriesStore) List(_ context.Context, f storage.SeriesFilter) ([]*domain.Series, error) {
	terms, err := storage.ParseOrderBy(f.OrderBy, map[string]bool{
		"series_id": true, "series_name": true, "ticker": true, "version_number": true,
		"created_at": true, "updated_at": true, "effective_date": true, "as_of_date": true,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := make(map[string]struct{}, len(f.SeriesNameIn))
	for _, n := range f.SeriesNameIn {
		lowered[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}

	var result []*domain.Series
	for _, series := range s.data {
		if len(f.SeriesIDIn) > 0 && !containsInt64(f.SeriesIDIn, series.SeriesID) {
			continue
		}
		if f.SeriesNameILike != nil && !containsFold(series.SeriesName, *f.SeriesNameILike) {
			continue
		}
		if len(lowered) > 0 {
			if _, ok := lowered[strings.ToLower(series.SeriesName)]; !ok {
				continue
			}
		}
		if f.TickerILike != nil && (series.Ticker == nil || !containsFold(*series.Ticker, *f.TickerILike)) {
			continue
		}
		if f.IsActive != nil && series.IsActive != *f.IsActive {
			continue
		}
		if f.IsDerived != nil && series.IsDerived != *f.IsDerived {
			continue
		}
		if !matchDimensionIDs(series, f) {
			continue
		}
		row := *series
		result = append(result, &row)
	}

	sort.Slice(result, func(i, j int) bool {
		for _, t := range terms {
			var less, eq bool
			switch t.Field {
			case "series_name":
				less, eq = result[i].SeriesName < result[j].SeriesName, result[i].SeriesName == result[j].SeriesName
			case "ticker":
				ti, tj := deref(result[i].Ticker), deref(result[j].Ticker)
				less, eq = ti < tj, ti == tj
			case "version_number":
				less, eq = result[i].VersionNumber < result[j].VersionNumber, result[i].VersionNumber == result[j].VersionNumber
			case "created_at":
				less, eq = result[i].CreatedAt.Before(result[j].CreatedAt), result[i].CreatedAt.Equal(result[j].CreatedAt)
			case "updated_at":
				less, eq = result[i].UpdatedAt.Before(result[j].UpdatedAt), result[i].UpdatedAt.Equal(result[j].UpdatedAt)
			default:
				less, eq = result[i].SeriesID < result[j].SeriesID, result[i].SeriesID == result[j].SeriesID
			}
			if !eq {
				if t.Desc {
					return !less
				}
				return less
			}
		}
		return result[i].SeriesID < result[j].SeriesID
	})

	return page(result, f.Skip, storage.ClampLimit(f.Limit)), nil
}

// Update applies a partial update and touches updated_at.
func (s *SeriesStore) Update(_ context.Context, seriesID int64, upd domain.SeriesUpdate) (*domain.Series, error) {
	if err := s.checkUpdateReferences(upd); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.data[seriesID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if upd.SeriesName != nil {
		series.SeriesName = *upd.SeriesName
	}
	if upd.AssetClassID != nil {
		series.AssetClassID = upd.AssetClassID
	}
	if upd.SubAssetClassID != nil {
		series.SubAssetClassID = upd.SubAssetClassID
	}
	if upd.ProductTypeID != nil {
		series.ProductTypeID = upd.ProductTypeID
	}
	if upd.DataTypeID != nil {
		series.DataTypeID = upd.DataTypeID
	}
	if upd.StructureTypeID != nil {
		series.StructureTypeID = upd.StructureTypeID
	}
	if upd.MarketSegmentID != nil {
		series.MarketSegmentID = upd.MarketSegmentID
	}
	if upd.FieldTypeID != nil {
		series.FieldTypeID = upd.FieldTypeID
	}
	if upd.TickerSourceID != nil {
		series.TickerSourceID = upd.TickerSourceID
	}
	if upd.Ticker != nil {
		series.Ticker = upd.Ticker
	}
	if upd.VersionNumber != nil {
		series.VersionNumber = *upd.VersionNumber
	}
	if upd.IsActive != nil {
		series.IsActive = *upd.IsActive
	}
	if upd.IsDerived != nil {
		series.IsDerived = *upd.IsDerived
	}
	if upd.CalculationMethod != nil {
		series.CalculationMethod = upd.CalculationMethod
	}
	if upd.DataQualityScore != nil {
		series.DataQualityScore = upd.DataQualityScore
	}
	if upd.Source != nil {
		series.Source = upd.Source
	}
	if upd.ConfidenceLevel != nil {
		series.ConfidenceLevel = upd.ConfidenceLevel
	}
	if upd.EffectiveDate != nil {
		series.EffectiveDate = upd.EffectiveDate
	}
	if upd.AsOfDate != nil {
		series.AsOfDate = upd.AsOfDate
	}
	if upd.ValidFrom != nil {
		series.ValidFrom = upd.ValidFrom
	}
	if upd.ValidTo != nil {
		series.ValidTo = upd.ValidTo
	}
	series.UpdatedAt = now()

	row := *series
	return &row, nil
}

// SoftDelete sets is_active=false. updated_at is touched only on the first
// transition.
func (s *SeriesStore) SoftDelete(_ context.Context, seriesID int64) (*domain.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.data[seriesID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if series.IsActive {
		series.IsActive = false
		series.UpdatedAt = now()
	}

	row := *series
	return &row, nil
}

// ResolveIDs evaluates metadata predicates against every registry row,
// returning matching ids in ascending order.
func (s *SeriesStore) ResolveIDs(_ context.Context, p storage.MetadataPredicates) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := make(map[string]struct{}, len(p.SeriesNameIn))
	for _, n := range p.SeriesNameIn {
		lowered[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}

	var ids []int64
	for _, series := range s.data {
		if p.SeriesNameILike != nil && !containsFold(series.SeriesName, *p.SeriesNameILike) {
			continue
		}
		if len(lowered) > 0 {
			if _, ok := lowered[strings.ToLower(series.SeriesName)]; !ok {
				continue
			}
		}
		if p.TickerILike != nil && (series.Ticker == nil || !containsFold(*series.Ticker, *p.TickerILike)) {
			continue
		}
		if p.IsActive != nil && series.IsActive != *p.IsActive {
			continue
		}
		if p.IsDerived != nil && series.IsDerived != *p.IsDerived {
			continue
		}
		if !s.matchDimensionNames(series, p.DimensionNameIn) {
			continue
		}
		ids = append(ids, series.SeriesID)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetMetadata builds grouped-response metadata blocks, lookup names resolved
// against the in-memory catalog. Ids without a row are absent from the map.
func (s *SeriesStore) GetMetadata(_ context.Context, seriesIDs []int64) (map[int64]*domain.SeriesMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := make(map[int64]*domain.SeriesMetadata, len(seriesIDs))
	for _, id := range seriesIDs {
		series, ok := s.data[id]
		if !ok {
			continue
		}
		blocks[id] = &domain.SeriesMetadata{
			SeriesID:          series.SeriesID,
			SeriesName:        series.SeriesName,
			Ticker:            series.Ticker,
			IsActive:          series.IsActive,
			IsDerived:         series.IsDerived,
			VersionNumber:     series.VersionNumber,
			AssetClassName:    s.lookups.nameOf(domain.DimensionAssetClass, series.AssetClassID),
			SubAssetClassName: s.lookups.nameOf(domain.DimensionSubAssetClass, series.SubAssetClassID),
			ProductTypeName:   s.lookups.nameOf(domain.DimensionProductType, series.ProductTypeID),
			DataTypeName:      s.lookups.nameOf(domain.DimensionDataType, series.DataTypeID),
			StructureTypeName: s.lookups.nameOf(domain.DimensionStructureType, series.StructureTypeID),
			MarketSegmentName: s.lookups.nameOf(domain.DimensionMarketSegment, series.MarketSegmentID),
			FieldTypeName:     s.lookups.nameOf(domain.DimensionFieldType, series.FieldTypeID),
			TickerSourceName:  s.lookups.nameOf(domain.DimensionTickerSource, series.TickerSourceID),
		}
	}
	return blocks, nil
}

// matchDimensionNames checks every dimension predicate against the series'
// resolved lookup names.
func (s *SeriesStore) matchDimensionNames(series *domain.Series, predicates map[domain.Dimension][]string) bool {
	for dim, names := range predicates {
		if len(names) == 0 {
			continue
		}
		name := s.lookups.nameOf(dim, dimensionID(series, dim))
		if name == nil || !containsString(names, *name) {
			return false
		}
	}
	return true
}

// checkReferences mirrors the relational store's foreign keys.
func (s *SeriesStore) checkReferences(series *domain.Series) error {
	for _, dim := range domain.Dimensions {
		id := dimensionID(series, dim)
		if id != nil && s.lookups.nameOf(dim, id) == nil {
			return storage.ErrForeignKeyViolation
		}
	}
	return nil
}

func (s *SeriesStore) checkUpdateReferences(upd domain.SeriesUpdate) error {
	refs := map[domain.Dimension]*int64{
		domain.DimensionAssetClass:    upd.AssetClassID,
		domain.DimensionSubAssetClass: upd.SubAssetClassID,
		domain.DimensionProductType:   upd.ProductTypeID,
		domain.DimensionDataType:      upd.DataTypeID,
		domain.DimensionStructureType: upd.StructureTypeID,
		domain.DimensionMarketSegment: upd.MarketSegmentID,
		domain.DimensionFieldType:     upd.FieldTypeID,
		domain.DimensionTickerSource:  upd.TickerSourceID,
	}
	for dim, id := range refs {
		if id != nil && s.lookups.nameOf(dim, id) == nil {
			return storage.ErrForeignKeyViolation
		}
	}
	return nil
}

// dimensionID extracts the series' reference for one dimension.
func dimensionID(series *domain.Series, dim domain.Dimension) *int64 {
	switch dim {
	case domain.DimensionAssetClass:
		return series.AssetClassID
	case domain.DimensionSubAssetClass:
		return series.SubAssetClassID
	case domain.DimensionProductType:
		return series.ProductTypeID
	case domain.DimensionDataType:
		return series.DataTypeID
	case domain.DimensionStructureType:
		return series.StructureTypeID
	case domain.DimensionMarketSegment:
		return series.MarketSegmentID
	case domain.DimensionFieldType:
		return series.FieldTypeID
	case domain.DimensionTickerSource:
		return series.TickerSourceID
	}
	return nil
}

func matchDimensionIDs(series *domain.Series, f storage.SeriesFilter) bool {
	checks := []struct {
		in []int64
		id *int64
	}{
		{f.AssetClassIDIn, series.AssetClassID},
		{f.SubAssetClassIDIn, series.SubAssetClassID},
		{f.ProductTypeIDIn, series.ProductTypeID},
		{f.DataTypeIDIn, series.DataTypeID},
		{f.StructureTypeIDIn, series.StructureTypeID},
		{f.MarketSegmentIDIn, series.MarketSegmentID},
		{f.FieldTypeIDIn, series.FieldTypeID},
		{f.TickerSourceIDIn, series.TickerSourceID},
	}
	for _, c := range checks {
		if len(c.in) == 0 {
			continue
		}
		if c.id == nil || !containsInt64(c.in, *c.id) {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
