package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fin-series-store/internal/domain"
)

// LookupStore provides access to the classification lookup tables, one table
// per dimension.
type LookupStore interface {
	// Create inserts a new lookup entry. Returns ErrDuplicateKey if the name
	// already exists within the dimension.
	Create(ctx context.Context, e *domain.LookupEntry) (*domain.LookupEntry, error)

	// GetByID retrieves an entry. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, dim domain.Dimension, id int64) (*domain.LookupEntry, error)

	// List retrieves entries matching the filter, bounded by skip/limit.
	List(ctx context.Context, dim domain.Dimension, f LookupFilter) ([]*domain.LookupEntry, error)

	// Update applies a partial update and touches updated_at. Returns
	// ErrNotFound if the entry does not exist.
	Update(ctx context.Context, dim domain.Dimension, id int64, upd LookupUpdate) (*domain.LookupEntry, error)

	// Names returns all names of a dimension, sorted and de-duplicated.
	// Used to build dimension value snapshots.
	Names(ctx context.Context, dim domain.Dimension) ([]string, error)
}

// SeriesStore provides access to the series registry.
type SeriesStore interface {
	// Create inserts a new series. Lookup references are not pre-validated:
	// a bad id surfaces as ErrForeignKeyViolation from the store.
	Create(ctx context.Context, s *domain.Series) (*domain.Series, error)

	// GetByID retrieves a series. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, seriesID int64) (*domain.Series, error)

	// List retrieves series matching the filter.
	List(ctx context.Context, f SeriesFilter) ([]*domain.Series, error)

	// Update applies a partial update and touches updated_at.
	Update(ctx context.Context, seriesID int64, upd domain.SeriesUpdate) (*domain.Series, error)

	// SoftDelete sets is_active=false. Idempotent: a second call returns the
	// same inactive row without touching updated_at again. There is no hard
	// delete.
	SoftDelete(ctx context.Context, seriesID int64) (*domain.Series, error)

	// ResolveIDs runs the metadata resolution pass: series joined to exactly
	// the lookup dimensions referenced by the predicates, returning matching
	// series ids. An empty result means the observation scan must be
	// short-circuited by the caller.
	ResolveIDs(ctx context.Context, p MetadataPredicates) ([]int64, error)

	// GetMetadata fetches grouped-response metadata blocks for the given
	// series ids in one pass, lookup names resolved. Ids without a registry
	// row are simply absent from the result map.
	GetMetadata(ctx context.Context, seriesIDs []int64) (map[int64]*domain.SeriesMetadata, error)
}

// DependencyStore provides access to the series dependency graph.
type DependencyStore interface {
	// Create inserts an edge. No cycle or self-loop check is performed; a
	// parent/child id missing from the registry surfaces as
	// ErrForeignKeyViolation.
	Create(ctx context.Context, e *domain.DependencyEdge) (*domain.DependencyEdge, error)

	// GetByID retrieves an edge. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, dependencyID int64) (*domain.DependencyEdge, error)

	// List retrieves edges matching the filter.
	List(ctx context.Context, f DependencyFilter) ([]*domain.DependencyEdge, error)
}

// CalculationStore provides access to the calculation ledger.
type CalculationStore interface {
	// Create appends a calculation log entry with caller-supplied status.
	Create(ctx context.Context, e *domain.CalculationLogEntry) (*domain.CalculationLogEntry, error)

	// GetByID retrieves an entry. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, calculationID int64) (*domain.CalculationLogEntry, error)

	// List retrieves entries matching the filter.
	List(ctx context.Context, f CalculationFilter) ([]*domain.CalculationLogEntry, error)
}

// ObservationStore provides access to the time-series fact store. series_id
// is an untyped cross-store reference: the store itself never checks it
// against the registry.
type ObservationStore interface {
	// Insert adds one observation. Re-inserting an existing key is a logical
	// upsert with last-write-wins semantics.
	Insert(ctx context.Context, o *domain.Observation) error

	// InsertBulk adds multiple observations in one batch.
	InsertBulk(ctx context.Context, obs []*domain.Observation) error

	// Get retrieves the observation at (seriesID, date). Returns ErrNotFound
	// if not exists.
	Get(ctx context.Context, seriesID int64, timestamp time.Time) (*domain.Observation, error)

	// Scan retrieves observations matching the filter, ordered per
	// f.OrderBy (default timestamp descending).
	Scan(ctx context.Context, f ObservationFilter) ([]*domain.Observation, error)

	// Update rewrites the value at an existing key. Implemented as
	// insert+compaction, not in-place update; concurrent writers to the
	// same key resolve last-write-wins. Returns ErrNotFound if the key does
	// not exist.
	Update(ctx context.Context, seriesID int64, timestamp time.Time, value decimal.Decimal) (*domain.Observation, error)
}
