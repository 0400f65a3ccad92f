// Package api exposes the HTTP surface: value queries, series registry and
// lookup catalog CRUD, dependency graph and calculation ledger endpoints,
// health and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"fin-series-store/internal/catalog"
	"fin-series-store/internal/graph"
	"fin-series-store/internal/health"
	"fin-series-store/internal/observability"
	"fin-series-store/internal/query"
)

// Server holds the handlers' collaborators.
type Server struct {
	catalog   *catalog.Service
	graph     *graph.Service
	engine    *query.Engine
	snapshots *query.SnapshotHolder
	health    *health.Checker
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// Options configures a Server.
type Options struct {
	Catalog   *catalog.Service
	Graph     *graph.Service
	Engine    *query.Engine
	Snapshots *query.SnapshotHolder
	Health    *health.Checker
	Metrics   *observability.Metrics // optional
	Logger    *zap.Logger            // optional
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:   opts.Catalog,
		graph:     opts.Graph,
		engine:    opts.Engine,
		snapshots: opts.Snapshots,
		health:    opts.Health,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.measure)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/values", func(r chi.Router) {
			r.Get("/", s.handleListValues)
			r.Post("/", s.handleInsertValue)
			r.Put("/", s.handleUpdateValue)
			r.Get("/derived", s.handleListDerivedValues)
			r.Get("/point", s.handleGetPoint)
		})

		r.Route("/series", func(r chi.Router) {
			r.Post("/", s.handleCreateSeries)
			r.Get("/", s.handleListSeries)
			r.Get("/{id}", s.handleGetSeries)
			r.Patch("/{id}", s.handleUpdateSeries)
			r.Delete("/{id}", s.handleDeleteSeries)
		})

		r.Route("/lookups/{dimension}", func(r chi.Router) {
			r.Post("/", s.handleCreateLookup)
			r.Get("/", s.handleListLookups)
			r.Get("/{id}", s.handleGetLookup)
			r.Patch("/{id}", s.handleUpdateLookup)
		})

		r.Route("/dependencies", func(r chi.Router) {
			r.Post("/", s.handleCreateDependency)
			r.Get("/", s.handleListDependencies)
			r.Get("/{id}", s.handleGetDependency)
		})

		r.Route("/calculations", func(r chi.Router) {
			r.Post("/", s.handleCreateCalculation)
			r.Get("/", s.handleListCalculations)
			r.Get("/{id}", s.handleGetCalculation)
		})

		r.Post("/snapshots/refresh", s.handleSnapshotRefresh)
	})

	return r
}

// measure records request duration per route pattern and method.
func (s *Server) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// handleHealth reports dependency status. 200 unless the relational store is
// down, then 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

// handleSnapshotRefresh rebuilds the dimension value snapshots on demand.
func (s *Server) handleSnapshotRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.snapshots.Refresh(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
