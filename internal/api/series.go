package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// seriesRequest is the create/patch payload. Every field is optional at the
// JSON level; create requires series_name.
type seriesRequest struct {
	SeriesName *string `json:"series_name"`

	AssetClassID    *int64 `json:"asset_class_id"`
	SubAssetClassID *int64 `json:"sub_asset_class_id"`
	ProductTypeID   *int64 `json:"product_type_id"`
	DataTypeID      *int64 `json:"data_type_id"`
	StructureTypeID *int64 `json:"structure_type_id"`
	MarketSegmentID *int64 `json:"market_segment_id"`
	FieldTypeID     *int64 `json:"field_type_id"`
	TickerSourceID  *int64 `json:"ticker_source_id"`

	Ticker            *string          `json:"ticker"`
	VersionNumber     *int             `json:"version_number"`
	IsActive          *bool            `json:"is_active"`
	IsDerived         *bool            `json:"is_derived"`
	CalculationMethod *string          `json:"calculation_method"`
	DataQualityScore  *decimal.Decimal `json:"data_quality_score"`
	Source            *string          `json:"source"`
	ConfidenceLevel   *string          `json:"confidence_level"`

	EffectiveDate *time.Time `json:"effective_date"`
	AsOfDate      *time.Time `json:"as_of_date"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to"`
}

func (req seriesRequest) toSeries() *domain.Series {
	s := &domain.Series{
		AssetClassID:      req.AssetClassID,
		SubAssetClassID:   req.SubAssetClassID,
		ProductTypeID:     req.ProductTypeID,
		DataTypeID:        req.DataTypeID,
		StructureTypeID:   req.StructureTypeID,
		MarketSegmentID:   req.MarketSegmentID,
		FieldTypeID:       req.FieldTypeID,
		TickerSourceID:    req.TickerSourceID,
		Ticker:            req.Ticker,
		IsActive:          true,
		CalculationMethod: req.CalculationMethod,
		DataQualityScore:  req.DataQualityScore,
		ConfidenceLevel:   req.ConfidenceLevel,
		EffectiveDate:     req.EffectiveDate,
		AsOfDate:          req.AsOfDate,
		ValidFrom:         req.ValidFrom,
		ValidTo:           req.ValidTo,
	}
	if req.SeriesName != nil {
		s.SeriesName = *req.SeriesName
	}
	if req.VersionNumber != nil {
		s.VersionNumber = *req.VersionNumber
	}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if req.IsDerived != nil {
		s.IsDerived = *req.IsDerived
	}
	if req.Source != nil {
		src := domain.DataSource(*req.Source)
		s.Source = &src
	}
	return s
}

func (req seriesRequest) toUpdate() domain.SeriesUpdate {
	upd := domain.SeriesUpdate{
		SeriesName:        req.SeriesName,
		AssetClassID:      req.AssetClassID,
		SubAssetClassID:   req.SubAssetClassID,
		ProductTypeID:     req.ProductTypeID,
		DataTypeID:        req.DataTypeID,
		StructureTypeID:   req.StructureTypeID,
		MarketSegmentID:   req.MarketSegmentID,
		FieldTypeID:       req.FieldTypeID,
		TickerSourceID:    req.TickerSourceID,
		Ticker:            req.Ticker,
		VersionNumber:     req.VersionNumber,
		IsActive:          req.IsActive,
		IsDerived:         req.IsDerived,
		CalculationMethod: req.CalculationMethod,
		DataQualityScore:  req.DataQualityScore,
		ConfidenceLevel:   req.ConfidenceLevel,
		EffectiveDate:     req.EffectiveDate,
		AsOfDate:          req.AsOfDate,
		ValidFrom:         req.ValidFrom,
		ValidTo:           req.ValidTo,
	}
	if req.Source != nil {
		src := domain.DataSource(*req.Source)
		upd.Source = &src
	}
	return upd
}

// seriesResponse is the registry row payload.
type seriesResponse struct {
	SeriesID   int64  `json:"series_id"`
	SeriesName string `json:"series_name"`

	AssetClassID    *int64 `json:"asset_class_id"`
	SubAssetClassID *int64 `json:"sub_asset_class_id"`
	ProductTypeID   *int64 `json:"product_type_id"`
	DataTypeID      *int64 `json:"data_type_id"`
	StructureTypeID *int64 `json:"structure_type_id"`
	MarketSegmentID *int64 `json:"market_segment_id"`
	FieldTypeID     *int64 `json:"field_type_id"`
	TickerSourceID  *int64 `json:"ticker_source_id"`

	Ticker            *string          `json:"ticker"`
	VersionNumber     int              `json:"version_number"`
	IsActive          bool             `json:"is_active"`
	IsDerived         bool             `json:"is_derived"`
	CalculationMethod *string          `json:"calculation_method"`
	DataQualityScore  *decimal.Decimal `json:"data_quality_score"`
	Source            *string          `json:"source"`
	ConfidenceLevel   *string          `json:"confidence_level"`

	EffectiveDate *time.Time `json:"effective_date"`
	AsOfDate      *time.Time `json:"as_of_date"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSeriesResponse(s *domain.Series) seriesResponse {
	resp := seriesResponse{
		SeriesID:          s.SeriesID,
		SeriesName:        s.SeriesName,
		AssetClassID:      s.AssetClassID,
		SubAssetClassID:   s.SubAssetClassID,
		ProductTypeID:     s.ProductTypeID,
		DataTypeID:        s.DataTypeID,
		StructureTypeID:   s.StructureTypeID,
		MarketSegmentID:   s.MarketSegmentID,
		FieldTypeID:       s.FieldTypeID,
		TickerSourceID:    s.TickerSourceID,
		Ticker:            s.Ticker,
		VersionNumber:     s.VersionNumber,
		IsActive:          s.IsActive,
		IsDerived:         s.IsDerived,
		CalculationMethod: s.CalculationMethod,
		DataQualityScore:  s.DataQualityScore,
		ConfidenceLevel:   s.ConfidenceLevel,
		EffectiveDate:     s.EffectiveDate,
		AsOfDate:          s.AsOfDate,
		ValidFrom:         s.ValidFrom,
		ValidTo:           s.ValidTo,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.Source != nil {
		src := string(*s.Source)
		resp.Source = &src
	}
	return resp
}

func newSeriesListResponse(series []*domain.Series) []seriesResponse {
	out := make([]seriesResponse, 0, len(series))
	for _, s := range series {
		out = append(out, newSeriesResponse(s))
	}
	return out
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	created, err := s.catalog.CreateSeries(r.Context(), req.toSeries())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newSeriesResponse(created))
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	f, err := parseSeriesFilter(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	series, err := s.catalog.ListSeries(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSeriesListResponse(series))
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	series, err := s.catalog.GetSeries(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSeriesResponse(series))
}

func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req seriesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	series, err := s.catalog.UpdateSeries(r.Context(), id, req.toUpdate())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSeriesResponse(series))
}

func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	series, err := s.catalog.SoftDeleteSeries(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSeriesResponse(series))
}

func parseSeriesFilter(r *http.Request) (storage.SeriesFilter, error) {
	var f storage.SeriesFilter
	var err error

	if f.SeriesIDIn, err = qInt64List(r, "series_id__in"); err != nil {
		return f, err
	}
	f.SeriesNameILike = qStrPtr(r, "series_name__ilike")
	f.SeriesNameIn = qStrList(r, "series_name__in")
	f.TickerILike = qStrPtr(r, "ticker__ilike")
	if f.IsActive, err = qBoolPtr(r, "is_active"); err != nil {
		return f, err
	}
	if f.IsDerived, err = qBoolPtr(r, "is_derived"); err != nil {
		return f, err
	}

	dims := []struct {
		param string
		dst   *[]int64
	}{
		{"asset_class_id__in", &f.AssetClassIDIn},
		{"sub_asset_class_id__in", &f.SubAssetClassIDIn},
		{"product_type_id__in", &f.ProductTypeIDIn},
		{"data_type_id__in", &f.DataTypeIDIn},
		{"structure_type_id__in", &f.StructureTypeIDIn},
		{"market_segment_id__in", &f.MarketSegmentIDIn},
		{"field_type_id__in", &f.FieldTypeIDIn},
		{"ticker_source_id__in", &f.TickerSourceIDIn},
	}
	for _, d := range dims {
		if *d.dst, err = qInt64List(r, d.param); err != nil {
			return f, err
		}
	}

	f.OrderBy = qStrList(r, "order_by")
	if f.Skip, err = qInt(r, "skip"); err != nil {
		return f, err
	}
	if f.Limit, err = qInt(r, "limit"); err != nil {
		return f, err
	}
	return f, nil
}
