package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// dependencyRequest is the create payload for a graph edge.
type dependencyRequest struct {
	ParentSeriesID int64            `json:"parent_series_id"`
	ChildSeriesID  int64            `json:"child_series_id"`
	DependencyType *string          `json:"dependency_type"`
	Weight         *decimal.Decimal `json:"weight"`
	Formula        *string          `json:"formula"`
	IsActive       *bool            `json:"is_active"`
	ValidFrom      *time.Time       `json:"valid_from"`
	ValidTo        *time.Time       `json:"valid_to"`
}

// dependencyResponse is the graph edge payload.
type dependencyResponse struct {
	DependencyID   int64            `json:"dependency_id"`
	ParentSeriesID int64            `json:"parent_series_id"`
	ChildSeriesID  int64            `json:"child_series_id"`
	DependencyType *string          `json:"dependency_type"`
	Weight         *decimal.Decimal `json:"weight"`
	Formula        *string          `json:"formula"`
	IsActive       bool             `json:"is_active"`
	ValidFrom      *time.Time       `json:"valid_from"`
	ValidTo        *time.Time       `json:"valid_to"`
	CreatedAt      time.Time        `json:"created_at"`
}

func newDependencyResponse(e *domain.DependencyEdge) dependencyResponse {
	return dependencyResponse{
		DependencyID:   e.DependencyID,
		ParentSeriesID: e.ParentSeriesID,
		ChildSeriesID:  e.ChildSeriesID,
		DependencyType: e.DependencyType,
		Weight:         e.Weight,
		Formula:        e.Formula,
		IsActive:       e.IsActive,
		ValidFrom:      e.ValidFrom,
		ValidTo:        e.ValidTo,
		CreatedAt:      e.CreatedAt,
	}
}

func (s *Server) handleCreateDependency(w http.ResponseWriter, r *http.Request) {
	var req dependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	e := &domain.DependencyEdge{
		ParentSeriesID: req.ParentSeriesID,
		ChildSeriesID:  req.ChildSeriesID,
		DependencyType: req.DependencyType,
		Weight:         req.Weight,
		Formula:        req.Formula,
		IsActive:       true,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}

	created, err := s.graph.CreateDependency(r.Context(), e)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newDependencyResponse(created))
}

func (s *Server) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	var f storage.DependencyFilter
	var err error

	if f.ParentSeriesIDIn, err = qInt64List(r, "parent_series_id__in"); err != nil {
		s.respondError(w, err)
		return
	}
	if f.ChildSeriesIDIn, err = qInt64List(r, "child_series_id__in"); err != nil {
		s.respondError(w, err)
		return
	}
	if f.IsActive, err = qBoolPtr(r, "is_active"); err != nil {
		s.respondError(w, err)
		return
	}
	f.DependencyTypeIn = qStrList(r, "dependency_type__in")
	f.OrderBy = qStrList(r, "order_by")
	if f.Skip, err = qInt(r, "skip"); err != nil {
		s.respondError(w, err)
		return
	}
	if f.Limit, err = qInt(r, "limit"); err != nil {
		s.respondError(w, err)
		return
	}

	edges, err := s.graph.ListDependencies(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]dependencyResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, newDependencyResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDependency(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	e, err := s.graph.GetDependency(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newDependencyResponse(e))
}

// calculationRequest is the create payload for a ledger entry.
type calculationRequest struct {
	DerivedSeriesID       int64          `json:"derived_series_id"`
	CalculationMethod     *string        `json:"calculation_method"`
	InputSeriesIDs        []int64        `json:"input_series_ids"`
	CalculationParameters map[string]any `json:"calculation_parameters"`
	CalculationStatus     *string        `json:"calculation_status"`
	ErrorMessage          *string        `json:"error_message"`
	ExecutionTimeMs       *int64         `json:"execution_time_ms"`
	CalculatedAt          *time.Time     `json:"calculated_at"`
	LastCalculated        *time.Time     `json:"last_calculated"`
	CalculatedBy          *string        `json:"calculated_by"`
	CalculationPolicy     *string        `json:"calculation_policy"`
}

// calculationResponse is the ledger entry payload.
type calculationResponse struct {
	CalculationID         int64          `json:"calculation_id"`
	DerivedSeriesID       int64          `json:"derived_series_id"`
	CalculationMethod     *string        `json:"calculation_method"`
	InputSeriesIDs        []int64        `json:"input_series_ids"`
	CalculationParameters map[string]any `json:"calculation_parameters"`
	CalculationStatus     *string        `json:"calculation_status"`
	ErrorMessage          *string        `json:"error_message"`
	ExecutionTimeMs       *int64         `json:"execution_time_ms"`
	CalculatedAt          *time.Time     `json:"calculated_at"`
	LastCalculated        *time.Time     `json:"last_calculated"`
	CalculatedBy          *string        `json:"calculated_by"`
	CalculationPolicy     *string        `json:"calculation_policy"`
}

func newCalculationResponse(e *domain.CalculationLogEntry) calculationResponse {
	return calculationResponse{
		CalculationID:         e.CalculationID,
		DerivedSeriesID:       e.DerivedSeriesID,
		CalculationMethod:     e.CalculationMethod,
		InputSeriesIDs:        e.InputSeriesIDs,
		CalculationParameters: e.CalculationParameters,
		CalculationStatus:     e.CalculationStatus,
		ErrorMessage:          e.ErrorMessage,
		ExecutionTimeMs:       e.ExecutionTimeMs,
		CalculatedAt:          e.CalculatedAt,
		LastCalculated:        e.LastCalculated,
		CalculatedBy:          e.CalculatedBy,
		CalculationPolicy:     e.CalculationPolicy,
	}
}

func (s *Server) handleCreateCalculation(w http.ResponseWriter, r *http.Request) {
	var req calculationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	created, err := s.graph.CreateCalculation(r.Context(), &domain.CalculationLogEntry{
		DerivedSeriesID:       req.DerivedSeriesID,
		CalculationMethod:     req.CalculationMethod,
		InputSeriesIDs:        req.InputSeriesIDs,
		CalculationParameters: req.CalculationParameters,
		CalculationStatus:     req.CalculationStatus,
		ErrorMessage:          req.ErrorMessage,
		ExecutionTimeMs:       req.ExecutionTimeMs,
		CalculatedAt:          req.CalculatedAt,
		LastCalculated:        req.LastCalculated,
		CalculatedBy:          req.CalculatedBy,
		CalculationPolicy:     req.CalculationPolicy,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCalculationResponse(created))
}

func (s *Server) handleListCalculations(w http.ResponseWriter, r *http.Request) {
	var f storage.CalculationFilter
	var err error

	if f.DerivedSeriesIDIn, err = qInt64List(r, "derived_series_id__in"); err != nil {
		s.respondError(w, err)
		return
	}
	f.StatusIn = qStrList(r, "calculation_status__in")
	f.MethodIn = qStrList(r, "calculation_method__in")
	if f.CalculatedAtGTE, err = qTimePtr(r, "calculated_at__gte"); err != nil {
		s.respondError(w, err)
		return
	}
	if f.CalculatedAtLTE, err = qTimePtr(r, "calculated_at__lte"); err != nil {
		s.respondError(w, err)
		return
	}
	f.OrderBy = qStrList(r, "order_by")
	if f.Skip, err = qInt(r, "skip"); err != nil {
		s.respondError(w, err)
		return
	}
	if f.Limit, err = qInt(r, "limit"); err != nil {
		s.respondError(w, err)
		return
	}

	entries, err := s.graph.ListCalculations(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]calculationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newCalculationResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCalculation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	e, err := s.graph.GetCalculation(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCalculationResponse(e))
}
