package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-series-store/internal/catalog"
	"fin-series-store/internal/domain"
	"fin-series-store/internal/graph"
	"fin-series-store/internal/health"
	"fin-series-store/internal/query"
	"fin-series-store/internal/storage/memory"
)

// newTestServer builds a server over memory stores.
func newTestServer(t *testing.T) (*httptest.Server, *memory.SeriesStore) {
	t.Helper()

	lookups := memory.NewLookupStore()
	series := memory.NewSeriesStore(lookups)
	deps := memory.NewDependencyStore(series)
	calcs := memory.NewCalculationStore(series)
	observations := memory.NewObservationStore()

	snapshots := query.NewSnapshotHolder(lookups)
	engine := query.NewEngine(query.Options{
		Series:       series,
		Observations: observations,
		Snapshots:    snapshots,
	})

	server := NewServer(Options{
		Catalog:   catalog.NewService(lookups, series, nil),
		Graph:     graph.NewService(deps, calcs, nil, nil),
		Engine:    engine,
		Snapshots: snapshots,
		Health:    health.NewChecker(nil, nil, nil),
	})

	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts, series
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report health.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.Healthy)
	assert.Equal(t, health.StatusNotConfigured, report.Postgres)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLookupCRUD(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/v1/lookups/asset_class"

	resp, body := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"name":        "Commodity",
		"description": "Physical commodities",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created lookupResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Commodity", created.Name)
	assert.Equal(t, "asset_class", created.Dimension)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/%d", base, created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Duplicate name within the dimension.
	resp, _ = doJSON(t, http.MethodPost, base+"/", map[string]any{"name": "Commodity"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown dimension in the path.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/lookups/bogus/", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%d", base, created.ID), map[string]any{
		"description": "updated",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated lookupResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "updated", *updated.Description)
}

func TestSeriesCRUD(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/v1/series"

	// Missing name.
	resp, _ := doJSON(t, http.MethodPost, base+"/", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown field in payload.
	resp, _ = doJSON(t, http.MethodPost, base+"/", map[string]any{"series_name": "X", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Bad lookup reference.
	resp, _ = doJSON(t, http.MethodPost, base+"/", map[string]any{
		"series_name":    "BAD_REF",
		"asset_class_id": 999,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"series_name": "GOLD_SPOT",
		"ticker":      "XAU Curncy",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created seriesResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, 1, created.VersionNumber)
	assert.True(t, created.IsActive)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/%d", base, created.SeriesID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = doJSON(t, http.MethodGet, base+"/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%d", base, created.SeriesID), map[string]any{
		"ticker": "GC1 Comdty",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated seriesResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "GC1 Comdty", *updated.Ticker)

	// Soft delete returns the retained row.
	resp, body = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, created.SeriesID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var deleted seriesResponse
	require.NoError(t, json.Unmarshal(body, &deleted))
	assert.False(t, deleted.IsActive)

	// Filtered list.
	resp, body = doJSON(t, http.MethodGet, base+"/?series_name__ilike=gold&is_active=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list []seriesResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestValuesFlow(t *testing.T) {
	ts, series := newTestServer(t)
	base := ts.URL + "/api/v1/values"

	gold, err := series.Create(context.Background(), &domain.Series{
		SeriesName: "GOLD_SPOT", IsActive: true,
	})
	require.NoError(t, err)

	// Insert against an unknown series is referential.
	resp, _ := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"series_id": 999, "timestamp": "2024-06-01", "value": "100.5",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"series_id": gold.SeriesID, "timestamp": "2024-06-01", "value": "100.5",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, base+"/", map[string]any{
		"series_id": gold.SeriesID, "timestamp": "2024-06-02", "value": 101,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// The primary listing requires a series name predicate.
	resp, _ = doJSON(t, http.MethodGet, base+"/", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/?series_name__ilike=gold&order_by=timestamp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var grouped []struct {
		Metadata  domain.SeriesMetadata     `json:"metadata"`
		ValueData []domain.ObservationPoint `json:"value_data"`
	}
	require.NoError(t, json.Unmarshal(body, &grouped))
	require.Len(t, grouped, 1)
	assert.Equal(t, "GOLD_SPOT", grouped[0].Metadata.SeriesName)
	require.Len(t, grouped[0].ValueData, 2)
	assert.True(t, grouped[0].ValueData[0].Value.Equal(decimal.RequireFromString("100.5")))

	// Point read.
	resp, body = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/point?series_id=%d&timestamp=2024-06-01", base, gold.SeriesID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var point domain.ObservationPoint
	require.NoError(t, json.Unmarshal(body, &point))
	assert.True(t, point.Value.Equal(decimal.RequireFromString("100.5")))

	resp, _ = doJSON(t, http.MethodGet, base+"/point?series_id=999&timestamp=2024-06-01", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Update rewrites an existing key only.
	resp, _ = doJSON(t, http.MethodPut, base+"/", map[string]any{
		"series_id": gold.SeriesID, "timestamp": "2024-07-01", "value": 1,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPut, base+"/", map[string]any{
		"series_id": gold.SeriesID, "timestamp": "2024-06-01", "value": "200",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &point))
	assert.True(t, point.Value.Equal(decimal.NewFromInt(200)))
}

func TestDerivedValues(t *testing.T) {
	ts, series := newTestServer(t)

	derived, err := series.Create(context.Background(), &domain.Series{
		SeriesName: "GOLD_SPREAD", IsActive: true, IsDerived: true,
	})
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/values/", map[string]any{
		"series_id": derived.SeriesID, "timestamp": "2024-06-01", "value": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/values/derived", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var points []domain.ObservationPoint
	require.NoError(t, json.Unmarshal(body, &points))
	assert.Len(t, points, 1)
}

func TestDependencyEndpoints(t *testing.T) {
	ts, series := newTestServer(t)
	base := ts.URL + "/api/v1/dependencies"

	ctx := context.Background()
	parent, err := series.Create(ctx, &domain.Series{SeriesName: "PARENT", IsActive: true})
	require.NoError(t, err)
	child, err := series.Create(ctx, &domain.Series{SeriesName: "CHILD", IsActive: true})
	require.NoError(t, err)

	// Weight outside [0,1].
	resp, _ := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"parent_series_id": parent.SeriesID,
		"child_series_id":  child.SeriesID,
		"weight":           "1.5",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"parent_series_id": parent.SeriesID,
		"child_series_id":  child.SeriesID,
		"weight":           "0.5",
		"dependency_type":  "input",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created dependencyResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.IsActive, "edges default to active")

	resp, body = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/?parent_series_id__in=%d", base, parent.SeriesID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list []dependencyResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestCalculationEndpoints(t *testing.T) {
	ts, series := newTestServer(t)
	base := ts.URL + "/api/v1/calculations"

	derived, err := series.Create(context.Background(), &domain.Series{
		SeriesName: "DERIVED", IsActive: true, IsDerived: true,
	})
	require.NoError(t, err)

	resp, _ := doJSON(t, http.MethodPost, base+"/", map[string]any{"derived_series_id": 999})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+"/", map[string]any{
		"derived_series_id":      derived.SeriesID,
		"calculation_method":     "spread",
		"input_series_ids":       []int64{1, 2},
		"calculation_parameters": map[string]any{"window": 30},
		"calculation_status":     "Success",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created calculationResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotNil(t, created.CalculatedAt)

	resp, body = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/?derived_series_id__in=%d&calculation_status__in=Success", base, derived.SeriesID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list []calculationResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestSnapshotRefreshEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/snapshots/refresh", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
