// Package catalog exposes the lookup catalog and series registry operations,
// mapping store failures into the application error taxonomy.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fin-series-store/internal/apperror"
	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// Service wraps the lookup and series stores.
type Service struct {
	lookups storage.LookupStore
	series  storage.SeriesStore
	logger  *zap.Logger
}

// NewService creates a Service. logger may be nil.
func NewService(lookups storage.LookupStore, series storage.SeriesStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lookups: lookups, series: series, logger: logger}
}

// CreateLookup inserts a lookup entry into its dimension's table.
func (s *Service) CreateLookup(ctx context.Context, e *domain.LookupEntry) (*domain.LookupEntry, error) {
	if !e.Dimension.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown dimension %q", e.Dimension))
	}
	if strings.TrimSpace(e.Name) == "" {
		return nil, apperror.Validation("lookup name is required")
	}

	created, err := s.lookups.Create(ctx, e)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, apperror.Validation(
				fmt.Sprintf("%s %q already exists", e.Dimension, e.Name))
		}
		if errors.Is(err, storage.ErrForeignKeyViolation) {
			return nil, apperror.Referential("referenced lookup entry does not exist", err)
		}
		return nil, s.mapStoreErr("create lookup", err)
	}
	return created, nil
}

// GetLookup retrieves one lookup entry.
func (s *Service) GetLookup(ctx context.Context, dim domain.Dimension, id int64) (*domain.LookupEntry, error) {
	if !dim.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown dimension %q", dim))
	}
	e, err := s.lookups.GetByID(ctx, dim, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("%s %d not found", dim, id))
		}
		return nil, s.mapStoreErr("get lookup", err)
	}
	return e, nil
}

// ListLookups lists entries of one dimension.
func (s *Service) ListLookups(ctx context.Context, dim domain.Dimension, f storage.LookupFilter) ([]*domain.LookupEntry, error) {
	if !dim.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown dimension %q", dim))
	}
	f.Limit = storage.ClampLimit(f.Limit)

	entries, err := s.lookups.List(ctx, dim, f)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			return nil, apperror.Validation(err.Error())
		}
		return nil, s.mapStoreErr("list lookups", err)
	}
	return entries, nil
}

// UpdateLookup applies a partial update to a lookup entry.
func (s *Service) UpdateLookup(ctx context.Context, dim domain.Dimension, id int64, upd storage.LookupUpdate) (*domain.LookupEntry, error) {
	if !dim.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown dimension %q", dim))
	}
	e, err := s.lookups.Update(ctx, dim, id, upd)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("%s %d not found", dim, id))
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, apperror.Validation(fmt.Sprintf("%s name already exists", dim))
		}
		return nil, s.mapStoreErr("update lookup", err)
	}
	return e, nil
}

// CreateSeries inserts a registry row. Lookup references are not
// pre-validated; a bad id surfaces as a referential error from the store.
func (s *Service) CreateSeries(ctx context.Context, series *domain.Series) (*domain.Series, error) {
	if strings.TrimSpace(series.SeriesName) == "" {
		return nil, apperror.Validation("series_name is required")
	}

	created, err := s.series.Create(ctx, series)
	if err != nil {
		if errors.Is(err, storage.ErrForeignKeyViolation) {
			return nil, apperror.Referential("referenced lookup entry does not exist", err)
		}
		return nil, s.mapStoreErr("create series", err)
	}
	return created, nil
}

// GetSeries retrieves one registry row.
func (s *Service) GetSeries(ctx context.Context, seriesID int64) (*domain.Series, error) {
	series, err := s.series.GetByID(ctx, seriesID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("series %d not found", seriesID))
		}
		return nil, s.mapStoreErr("get series", err)
	}
	return series, nil
}

// ListSeries lists registry rows.
func (s *Service) ListSeries(ctx context.Context, f storage.SeriesFilter) ([]*domain.Series, error) {
	f.Limit = storage.ClampLimit(f.Limit)

	series, err := s.series.List(ctx, f)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			return nil, apperror.Validation(err.Error())
		}
		return nil, s.mapStoreErr("list series", err)
	}
	return series, nil
}

// UpdateSeries applies a partial update and touches updated_at.
func (s *Service) UpdateSeries(ctx context.Context, seriesID int64, upd domain.SeriesUpdate) (*domain.Series, error) {
	series, err := s.series.Update(ctx, seriesID, upd)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("series %d not found", seriesID))
		}
		if errors.Is(err, storage.ErrForeignKeyViolation) {
			return nil, apperror.Referential("referenced lookup entry does not exist", err)
		}
		return nil, s.mapStoreErr("update series", err)
	}
	return series, nil
}

// SoftDeleteSeries marks a series inactive. The row is retained and excluded
// from default listings; there is no hard delete. Calling it again on an
// already-inactive series is a no-op returning the same state.
func (s *Service) SoftDeleteSeries(ctx context.Context, seriesID int64) (*domain.Series, error) {
	series, err := s.series.SoftDelete(ctx, seriesID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("series %d not found", seriesID))
		}
		return nil, s.mapStoreErr("soft delete series", err)
	}
	s.logger.Info("series soft-deleted", zap.Int64("series_id", seriesID))
	return series, nil
}

func (s *Service) mapStoreErr(op string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return apperror.PrimaryUnavailable(op+": relational store unavailable", err)
	}
	return apperror.Internal(op+" failed", err)
}
