package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/apperror"
	"fin-series-store/internal/domain"
	"fin-series-store/internal/query"
)

// dimensionParams maps the __in query parameter for each lookup dimension.
var dimensionParams = map[string]domain.Dimension{
	"asset_class__in":     domain.DimensionAssetClass,
	"sub_asset_class__in": domain.DimensionSubAssetClass,
	"product_type__in":    domain.DimensionProductType,
	"data_type__in":       domain.DimensionDataType,
	"structure_type__in":  domain.DimensionStructureType,
	"market_segment__in":  domain.DimensionMarketSegment,
	"field_type__in":      domain.DimensionFieldType,
	"ticker_source__in":   domain.DimensionTickerSource,
}

// parseValueFilter translates the __-operator query string into the engine's
// logical filter.
func parseValueFilter(r *http.Request) (query.Filter, error) {
	var f query.Filter
	var err error

	if f.SeriesIDIn, err = qInt64List(r, "series_id__in"); err != nil {
		return f, err
	}
	if f.TimestampGTE, err = qTimePtr(r, "timestamp__gte"); err != nil {
		return f, err
	}
	if f.TimestampLTE, err = qTimePtr(r, "timestamp__lte"); err != nil {
		return f, err
	}
	f.TimestampAgo = qStrPtr(r, "timestamp__ago")
	if f.ValueGTE, err = qDecimalPtr(r, "value__gte"); err != nil {
		return f, err
	}
	if f.ValueLTE, err = qDecimalPtr(r, "value__lte"); err != nil {
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

	for param, dim := range dimensionParams {
		names := qStrList(r, param)
		if len(names) == 0 {
			continue
		}
		if f.DimensionNameIn == nil {
			f.DimensionNameIn = make(map[domain.Dimension][]string)
		}
		f.DimensionNameIn[dim] = names
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

// handleListValues is the primary value listing: observations grouped per
// series, one metadata block each.
func (s *Server) handleListValues(w http.ResponseWriter, r *http.Request) {
	f, err := parseValueFilter(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	grouped, err := s.engine.ListGrouped(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, grouped)
}

// handleListDerivedValues returns flat points of derived series.
func (s *Server) handleListDerivedValues(w http.ResponseWriter, r *http.Request) {
	f, err := parseValueFilter(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	points, err := s.engine.ListDerived(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// handleGetPoint returns the single observation at (series_id, timestamp).
func (s *Server) handleGetPoint(w http.ResponseWriter, r *http.Request) {
	seriesID, ok, err := qInt64(r, "series_id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !ok {
		s.respondError(w, apperror.Validation("series_id is required"))
		return
	}
	ts, err := qTimePtr(r, "timestamp")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if ts == nil {
		s.respondError(w, apperror.Validation("timestamp is required"))
		return
	}

	point, err := s.engine.GetPoint(r.Context(), seriesID, *ts)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, point)
}

// valueRequest is the insert/update payload. Value accepts a JSON number or
// string; Timestamp a calendar date or RFC 3339 timestamp.
type valueRequest struct {
	SeriesID  int64           `json:"series_id"`
	Timestamp string          `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

func (v valueRequest) parse() (int64, time.Time, decimal.Decimal, error) {
	if v.SeriesID == 0 {
		return 0, time.Time{}, decimal.Decimal{}, apperror.Validation("series_id is required")
	}
	ts, err := parseTime(v.Timestamp)
	if err != nil {
		return 0, time.Time{}, decimal.Decimal{}, apperror.Validation("invalid timestamp: " + v.Timestamp)
	}
	// Observations are keyed by UTC calendar date.
	ts = ts.UTC()
	ts = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return v.SeriesID, ts, v.Value, nil
}

// handleInsertValue writes one observation.
func (s *Server) handleInsertValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	seriesID, ts, value, err := req.parse()
	if err != nil {
		s.respondError(w, err)
		return
	}

	o := &domain.Observation{SeriesID: seriesID, Timestamp: ts, Value: value}
	if err := s.engine.InsertValue(r.Context(), o); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, domain.ObservationPoint{Timestamp: ts, Value: value})
}

// handleUpdateValue rewrites the value at an existing key.
func (s *Server) handleUpdateValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	seriesID, ts, value, err := req.parse()
	if err != nil {
		s.respondError(w, err)
		return
	}

	point, err := s.engine.UpdateValue(r.Context(), seriesID, ts, value)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, point)
}
