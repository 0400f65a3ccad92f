// Package graph implements the derived-series dependency graph and the
// calculation ledger.
//
// The graph is deliberately permissive: edges are accepted for any pair of
// series the registry's foreign keys allow, including self-loops and cycles.
// Consumers that traverse it must detect and bound cycles themselves.
//
// The ledger is a passive audit trail. It records calculation attempts with
// whatever status the producer supplies; it does not run calculations, does
// not transition statuses, and does not serialize concurrent attempts for
// the same derived series — exclusivity, if needed, belongs to an external
// orchestrator.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fin-series-store/internal/apperror"
	"fin-series-store/internal/domain"
	"fin-series-store/internal/observability"
	"fin-series-store/internal/storage"
)

// Service exposes dependency graph and calculation ledger operations.
type Service struct {
	deps    storage.DependencyStore
	calcs   storage.CalculationStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a Service. metrics and logger may be nil.
func NewService(deps storage.DependencyStore, calcs storage.CalculationStore, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, calcs: calcs, metrics: metrics, logger: logger}
}

// CreateDependency inserts a parent→child edge. Weight, when present, must
// lie in [0,1]. Parent/child ids are not pre-validated: a missing series
// surfaces as a referential error from the store at exec time.
func (s *Service) CreateDependency(ctx context.Context, e *domain.DependencyEdge) (*domain.DependencyEdge, error) {
	if e.Weight != nil {
		w := *e.Weight
		if w.IsNegative() || w.GreaterThan(one) {
			return nil, apperror.Validation(fmt.Sprintf("weight %s outside [0,1]", w))
		}
	}

	created, err := s.deps.Create(ctx, e)
	if err != nil {
		if errors.Is(err, storage.ErrForeignKeyViolation) {
			return nil, apperror.Referential("parent or child series does not exist", err)
		}
		return nil, s.mapStoreErr("create dependency", err)
	}

	if s.metrics != nil {
		s.metrics.DependenciesCreated.Inc()
	}
	s.logger.Debug("dependency created",
		zap.Int64("dependency_id", created.DependencyID),
		zap.Int64("parent_series_id", created.ParentSeriesID),
		zap.Int64("child_series_id", created.ChildSeriesID))
	return created, nil
}

// GetDependency retrieves one edge.
func (s *Service) GetDependency(ctx context.Context, dependencyID int64) (*domain.DependencyEdge, error) {
	e, err := s.deps.GetByID(ctx, dependencyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("dependency %d not found", dependencyID))
		}
		return nil, s.mapStoreErr("get dependency", err)
	}
	return e, nil
}

// ListDependencies lists edges. is_active defaults to true: callers must
// explicitly set the filter's IsActive to see inactive edges.
func (s *Service) ListDependencies(ctx context.Context, f storage.DependencyFilter) ([]*domain.DependencyEdge, error) {
	if f.IsActive == nil {
		active := true
		f.IsActive = &active
	}
	f.Limit = storage.ClampLimit(f.Limit)

	edges, err := s.deps.List(ctx, f)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			return nil, apperror.Validation(err.Error())
		}
		return nil, s.mapStoreErr("list dependencies", err)
	}
	return edges, nil
}

// CreateCalculation appends a ledger entry with caller-supplied status.
func (s *Service) CreateCalculation(ctx context.Context, e *domain.CalculationLogEntry) (*domain.CalculationLogEntry, error) {
	if e.DerivedSeriesID == 0 {
		return nil, apperror.Validation("derived_series_id is required")
	}

	created, err := s.calcs.Create(ctx, e)
	if err != nil {
		if errors.Is(err, storage.ErrForeignKeyViolation) {
			return nil, apperror.Referential("derived series does not exist", err)
		}
		return nil, s.mapStoreErr("create calculation", err)
	}

	if s.metrics != nil {
		status := ""
		if created.CalculationStatus != nil {
			status = *created.CalculationStatus
		}
		s.metrics.CalculationsRecorded.WithLabelValues(status).Inc()
	}
	return created, nil
}

// GetCalculation retrieves one ledger entry.
func (s *Service) GetCalculation(ctx context.Context, calculationID int64) (*domain.CalculationLogEntry, error) {
	e, err := s.calcs.GetByID(ctx, calculationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("calculation %d not found", calculationID))
		}
		return nil, s.mapStoreErr("get calculation", err)
	}
	return e, nil
}

// ListCalculations lists ledger entries.
func (s *Service) ListCalculations(ctx context.Context, f storage.CalculationFilter) ([]*domain.CalculationLogEntry, error) {
	f.Limit = storage.ClampLimit(f.Limit)

	entries, err := s.calcs.List(ctx, f)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			return nil, apperror.Validation(err.Error())
		}
		return nil, s.mapStoreErr("list calculations", err)
	}
	return entries, nil
}

func (s *Service) mapStoreErr(op string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return apperror.PrimaryUnavailable(op+": relational store unavailable", err)
	}
	return apperror.Internal(op+" failed", err)
}

var one = decimal.NewFromInt(1)
