package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fin-series-store/internal/apperror"
)

// errorResponse is the uniform error payload.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are logged with their cause but surface a generic message.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	detail := err.Error()
	var e *apperror.Error
	if errors.As(err, &e) {
		detail = e.Msg
	}
	if kind == apperror.KindInternal {
		s.logger.Error("request failed", zap.Error(err))
		detail = "internal error"
	}

	respondJSON(w, status, errorResponse{Error: kind.String(), Detail: detail})
}

// decodeJSON reads a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.Validation(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// Query parameter helpers. Absent parameters yield nil, never zero values,
// so handlers can distinguish "not filtered" from "filtered by zero".

func qStrPtr(r *http.Request, name string) *string {
	if !r.URL.Query().Has(name) {
		return nil
	}
	v := r.URL.Query().Get(name)
	return &v
}

func qStrList(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func qBoolPtr(r *http.Request, name string) (*bool, error) {
	if !r.URL.Query().Has(name) {
		return nil, nil
	}
	raw := r.URL.Query().Get(name)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return &b, nil
}

func qInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.Validation(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return n, nil
}

func qInt64(r *http.Request, name string) (int64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, apperror.Validation(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return n, true, nil
}

func qInt64List(r *http.Request, name string) ([]int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, apperror.Validation(fmt.Sprintf("invalid %s entry: %q", name, part))
		}
		out = append(out, n)
	}
	return out, nil
}

// qTimePtr accepts a calendar date or an RFC 3339 timestamp.
func qTimePtr(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return &t, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func qDecimalPtr(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return &d, nil
}
