// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Query engine metrics
	QueriesTotal       *prometheus.CounterVec   // by operation
	QueryErrors        *prometheus.CounterVec   // by operation, kind
	QueryPhaseDuration *prometheus.HistogramVec // by phase: resolve, scan, metadata
	ResolvedSeriesIDs  prometheus.Histogram
	ObservationRows    prometheus.Histogram
	EmptyResolutions   prometheus.Counter
	ValidationRejects  prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	// Store metrics
	StoreQueryDuration *prometheus.HistogramVec // by store, operation
	StoreErrors        *prometheus.CounterVec   // by store, operation

	// Write path metrics
	ObservationsWritten  prometheus.Counter
	DependenciesCreated  prometheus.Counter
	CalculationsRecorded *prometheus.CounterVec // by status

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec // by route, method
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fin_series_store"
	}

	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of query engine operations",
		}, []string{"operation"}),
		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Total number of query engine errors by kind",
		}, []string{"operation", "kind"}),
		QueryPhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "phase_duration_seconds",
			Help:      "Duration of query phases (resolve, scan, metadata)",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		ResolvedSeriesIDs: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "resolved_series_ids",
			Help:      "Size of the series_id set produced by metadata resolution",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		ObservationRows: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "observation_rows",
			Help:      "Observation rows returned per scan",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		EmptyResolutions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "empty_resolutions_total",
			Help:      "Metadata resolutions that short-circuited the observation scan",
		}),
		ValidationRejects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "validation_rejects_total",
			Help:      "Queries rejected before any store access",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Series metadata cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Series metadata cache misses",
		}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Series metadata cache errors (degraded to store lookups)",
		}),
		StoreQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Store operation errors",
		}, []string{"store", "operation"}),
		ObservationsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "write",
			Name:      "observations_total",
			Help:      "Observations written to the time-series store",
		}),
		DependenciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "dependencies_created_total",
			Help:      "Dependency edges created",
		}),
		CalculationsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "calculations_recorded_total",
			Help:      "Calculation ledger entries recorded by status",
		}, []string{"status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
