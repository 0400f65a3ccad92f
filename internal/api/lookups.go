package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// lookupRequest is the create/patch payload for a lookup entry.
type lookupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	ParentID    *int64  `json:"parent_id"`
}

// lookupResponse is the lookup entry payload. Code and parent_id appear only
// for the dimensions that carry them.
type lookupResponse struct {
	ID          int64     `json:"id"`
	Dimension   string    `json:"dimension"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Code        *string   `json:"code,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newLookupResponse(e *domain.LookupEntry) lookupResponse {
	return lookupResponse{
		ID:          e.ID,
		Dimension:   string(e.Dimension),
		Name:        e.Name,
		Description: e.Description,
		Code:        e.Code,
		ParentID:    e.ParentID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func dimensionParam(r *http.Request) domain.Dimension {
	return domain.Dimension(chi.URLParam(r, "dimension"))
}

func (s *Server) handleCreateLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	e := &domain.LookupEntry{
		Dimension:   dimensionParam(r),
		Description: req.Description,
		Code:        req.Code,
		ParentID:    req.ParentID,
	}
	if req.Name != nil {
		e.Name = *req.Name
	}

	created, err := s.catalog.CreateLookup(r.Context(), e)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newLookupResponse(created))
}

func (s *Server) handleListLookups(w http.ResponseWriter, r *http.Request) {
	var f storage.LookupFilter
	var err error

	if f.IDIn, err = qInt64List(r, "id__in"); err != nil {
		s.respondError(w, err)
		return
	}
	f.NameILike = qStrPtr(r, "name__ilike")
	f.NameIn = qStrList(r, "name__in")
	f.OrderBy = qStrList(r, "order_by")
	if f.Skip, err = qInt(r, "skip"); err != nil {
		s.respondError(w, err)
		return
	}
	if f.Limit, err = qInt(r, "limit"); err != nil {
		s.respondError(w, err)
		return
	}

	entries, err := s.catalog.ListLookups(r.Context(), dimensionParam(r), f)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]lookupResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newLookupResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLookup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	e, err := s.catalog.GetLookup(r.Context(), dimensionParam(r), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newLookupResponse(e))
}

func (s *Server) handleUpdateLookup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	e, err := s.catalog.UpdateLookup(r.Context(), dimensionParam(r), id, storage.LookupUpdate{
		Name:        req.Name,
		Description: req.Description,
		Code:        req.Code,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newLookupResponse(e))
}
