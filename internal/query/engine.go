// Package query implements the filter/query engine: one logical filter is
// translated into a metadata resolution pass against the series registry
// (joined to exactly the lookup dimensions it references) followed by an
// observation store scan restricted to the resolved series_id set, with the
// results re-grouped per series in process.
//
// The two passes are sequential awaited calls against physically separate
// stores with no transaction spanning them; a registry row committed while a
// query is in flight may or may not be reflected in the scan.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fin-series-store/internal/apperror"
	"fin-series-store/internal/domain"
	"fin-series-store/internal/observability"
	"fin-series-store/internal/storage"
)

// observationOrderFields are the fields a scan may be ordered by.
var observationOrderFields = map[string]bool{
	"series_id":  true,
	"timestamp":  true,
	"value":      true,
	"created_at": true,
	"updated_at": true,
}

// MetadataCache caches grouped-response metadata blocks so repeated queries
// for the same series do not hit the registry. Implementations must degrade
// silently: a cache failure is never a query failure.
type MetadataCache interface {
	// GetSeries returns cached blocks for ids and the ids that missed.
	GetSeries(ctx context.Context, ids []int64) (map[int64]*domain.SeriesMetadata, []int64)

	// SetSeries stores blocks for later queries.
	SetSeries(ctx context.Context, blocks map[int64]*domain.SeriesMetadata)
}

// Options configures an Engine.
type Options struct {
	Series       storage.SeriesStore
	Observations storage.ObservationStore
	Snapshots    *SnapshotHolder
	Cache        MetadataCache          // optional
	Metrics      *observability.Metrics // optional
	Logger       *zap.Logger            // optional
	Now          func() time.Time       // optional, defaults to time.Now
}

// Engine is the filter/query engine. It is stateless apart from injected
// collaborators and safe for concurrent use.
type Engine struct {
	series       storage.SeriesStore
	observations storage.ObservationStore
	snapshots    *SnapshotHolder
	cache        MetadataCache
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewEngine creates an Engine from options.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		series:       opts.Series,
		observations: opts.Observations,
		snapshots:    opts.Snapshots,
		cache:        opts.Cache,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.snapshots == nil {
		e.snapshots = &SnapshotHolder{}
		e.snapshots.current.Store(DefaultSnapshot())
	}
	return e
}

// ListGrouped is the primary value-listing operation. It requires a
// non-blank series name predicate (matching unbounded series by value alone
// is prohibitively expensive), resolves metadata predicates to a series_id
// set, scans the observation store, and returns one metadata block per
// distinct series with its (timestamp, value) rows in scan order.
func (e *Engine) ListGrouped(ctx context.Context, f Filter) ([]*domain.GroupedSeriesData, error) {
	e.countQuery("list_grouped")

	if !f.HasSeriesNamePredicate() {
		e.countReject()
		return nil, apperror.Validation(
			"at least one of series_name__ilike or series_name__in is required and must be non-blank")
	}

	rows, err := e.scan(ctx, &f)
	if err != nil {
		e.countError("list_grouped", err)
		return nil, err
	}
	if len(rows) == 0 {
		return []*domain.GroupedSeriesData{}, nil
	}

	grouped, err := e.group(ctx, rows)
	if err != nil {
		e.countError("list_grouped", err)
		return nil, err
	}
	return grouped, nil
}

// ListDerived returns flat (timestamp, value) points for derived series
// only. is_derived is forced true; the series name restriction of the
// primary listing does not apply here.
func (e *Engine) ListDerived(ctx context.Context, f Filter) ([]domain.ObservationPoint, error) {
	e.countQuery("list_derived")

	derived := true
	f.IsDerived = &derived

	rows, err := e.scan(ctx, &f)
	if err != nil {
		e.countError("list_derived", err)
		return nil, err
	}

	points := make([]domain.ObservationPoint, 0, len(rows))
	for _, o := range rows {
		points = append(points, domain.ObservationPoint{Timestamp: o.Timestamp, Value: o.Value})
	}
	return points, nil
}

// GetPoint returns the single observation at (seriesID, date).
func (e *Engine) GetPoint(ctx context.Context, seriesID int64, timestamp time.Time) (*domain.ObservationPoint, error) {
	e.countQuery("get_point")

	o, err := e.observations.Get(ctx, seriesID, timestamp)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(
				fmt.Sprintf("no observation for series %d at %s", seriesID, timestamp.Format("2006-01-02")))
		}
		err = e.mapObservationErr(err)
		e.countError("get_point", err)
		return nil, err
	}
	return &domain.ObservationPoint{Timestamp: o.Timestamp, Value: o.Value}, nil
}

// InsertValue writes one observation. The series reference is validated here
// at the write-path boundary — the observation store itself never checks it.
func (e *Engine) InsertValue(ctx context.Context, o *domain.Observation) error {
	e.countQuery("insert_value")

	if _, err := e.series.GetByID(ctx, o.SeriesID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.Referential(
				fmt.Sprintf("series %d does not exist", o.SeriesID), err)
		}
		return e.mapRegistryErr(err)
	}

	if err := e.observations.Insert(ctx, o); err != nil {
		err = e.mapObservationErr(err)
		e.countError("insert_value", err)
		return err
	}
	if e.metrics != nil {
		e.metrics.ObservationsWritten.Inc()
	}
	return nil
}

// UpdateValue rewrites the value at an existing (seriesID, date) key. The
// store applies it as insert+compaction; last-write-wins under concurrency.
func (e *Engine) UpdateValue(ctx context.Context, seriesID int64, timestamp time.Time, value decimal.Decimal) (*domain.ObservationPoint, error) {
	e.countQuery("update_value")

	o, err := e.observations.Update(ctx, seriesID, timestamp, value)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(
				fmt.Sprintf("no observation for series %d at %s", seriesID, timestamp.Format("2006-01-02")))
		}
		err = e.mapObservationErr(err)
		e.countError("update_value", err)
		return nil, err
	}
	return &domain.ObservationPoint{Timestamp: o.Timestamp, Value: o.Value}, nil
}

// scan validates the filter, runs the resolution pass when metadata
// predicates are present, and executes the observation scan. A nil result
// with nil error means the resolution short-circuited.
func (e *Engine) scan(ctx context.Context, f *Filter) ([]*domain.Observation, error) {
	// Validate dimension filter values against the current snapshot.
	snap := e.snapshots.Current()
	for dim, names := range f.DimensionNameIn {
		if !dim.Valid() {
			e.countReject()
			return nil, apperror.Validation(fmt.Sprintf("unknown dimension %q", dim))
		}
		if err := snap.Validate(dim, names); err != nil {
			e.countReject()
			return nil, apperror.Validation(err.Error())
		}
	}

	// Parse the relative-time expression up front. An unparsable
	// expression is rejected, not silently dropped.
	var floor *time.Time
	if f.TimestampAgo != nil && *f.TimestampAgo != "" {
		d, err := FloorDate(*f.TimestampAgo, e.now())
		if err != nil {
			e.countReject()
			return nil, apperror.Validation(fmt.Sprintf("invalid timestamp__ago: %v", err))
		}
		floor = &d
	}

	if _, err := storage.ParseOrderBy(f.OrderBy, observationOrderFields); err != nil {
		e.countReject()
		return nil, apperror.Validation(err.Error())
	}

	scanIDs := f.SeriesIDIn

	p := f.metadataPredicates()
	if !p.Empty() {
		start := e.now()
		resolved, err := e.series.ResolveIDs(ctx, p)
		e.observePhase("resolve", start)
		if err != nil {
			return nil, e.mapRegistryErr(err)
		}
		if e.metrics != nil {
			e.metrics.ResolvedSeriesIDs.Observe(float64(len(resolved)))
		}
		// Empty resolution: the result is empty and the observation store
		// is never queried. An unbounded or malformed IN () scan must not
		// be issued.
		if len(resolved) == 0 {
			e.countEmptyResolution()
			return nil, nil
		}
		if len(scanIDs) > 0 {
			scanIDs = intersect(scanIDs, resolved)
			if len(scanIDs) == 0 {
				e.countEmptyResolution()
				return nil, nil
			}
		} else {
			scanIDs = resolved
		}
	}

	of := f.observationFilter(floor)
	of.SeriesIDIn = scanIDs

	start := e.now()
	rows, err := e.observations.Scan(ctx, of)
	e.observePhase("scan", start)
	if err != nil {
		return nil, e.mapObservationErr(err)
	}
	if e.metrics != nil {
		e.metrics.ObservationRows.Observe(float64(len(rows)))
	}
	return rows, nil
}

// group folds scan rows into per-series blocks in a single pass: the first
// row seen for a series opens its group, later rows append in scan order.
// Metadata is fetched once per distinct series, cache first.
func (e *Engine) group(ctx context.Context, rows []*domain.Observation) ([]*domain.GroupedSeriesData, error) {
	order := make([]int64, 0)
	groups := make(map[int64]*domain.GroupedSeriesData)

	for _, o := range rows {
		g, ok := groups[o.SeriesID]
		if !ok {
			g = &domain.GroupedSeriesData{}
			groups[o.SeriesID] = g
			order = append(order, o.SeriesID)
		}
		g.Observations = append(g.Observations, domain.ObservationPoint{
			Timestamp: o.Timestamp,
			Value:     o.Value,
		})
	}

	blocks, err := e.fetchMetadata(ctx, order)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.GroupedSeriesData, 0, len(order))
	for _, id := range order {
		g := groups[id]
		if block, ok := blocks[id]; ok {
			g.Metadata = *block
		} else {
			// Observation rows with no registry counterpart still get a
			// block; referential integrity across the two stores is by
			// convention only.
			g.Metadata = domain.SeriesMetadata{SeriesID: id, VersionNumber: 1}
		}
		result = append(result, g)
	}
	return result, nil
}

// fetchMetadata returns metadata blocks for ids, consulting the cache first
// and backfilling it with registry results.
func (e *Engine) fetchMetadata(ctx context.Context, ids []int64) (map[int64]*domain.SeriesMetadata, error) {
	if len(ids) == 0 {
		return map[int64]*domain.SeriesMetadata{}, nil
	}

	missing := ids
	blocks := make(map[int64]*domain.SeriesMetadata, len(ids))

	if e.cache != nil {
		var cached map[int64]*domain.SeriesMetadata
		cached, missing = e.cache.GetSeries(ctx, ids)
		for id, b := range cached {
			blocks[id] = b
		}
		if e.metrics != nil {
			e.metrics.CacheHits.Add(float64(len(cached)))
			e.metrics.CacheMisses.Add(float64(len(missing)))
		}
	}

	if len(missing) > 0 {
		start := e.now()
		fetched, err := e.series.GetMetadata(ctx, missing)
		e.observePhase("metadata", start)
		if err != nil {
			return nil, e.mapRegistryErr(err)
		}
		for id, b := range fetched {
			blocks[id] = b
		}
		if e.cache != nil && len(fetched) > 0 {
			e.cache.SetSeries(ctx, fetched)
		}
	}

	return blocks, nil
}

// mapRegistryErr classifies a relational store failure.
func (e *Engine) mapRegistryErr(err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return apperror.PrimaryUnavailable("series registry unavailable", err)
	}
	return apperror.Internal("series registry query failed", err)
}

// mapObservationErr classifies a time-series store failure. An unreachable
// observation store fails the operation; there is no metadata-only fallback.
func (e *Engine) mapObservationErr(err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return apperror.DependencyUnavailable("observation store unavailable", err)
	}
	if errors.Is(err, storage.ErrInvalidInput) {
		return apperror.Validation(err.Error())
	}
	return apperror.Internal("observation store query failed", err)
}

func (e *Engine) countQuery(op string) {
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(op).Inc()
	}
}

func (e *Engine) countError(op string, err error) {
	if e.metrics != nil {
		e.metrics.QueryErrors.WithLabelValues(op, apperror.KindOf(err).String()).Inc()
	}
	e.logger.Warn("query failed", zap.String("operation", op), zap.Error(err))
}

func (e *Engine) countReject() {
	if e.metrics != nil {
		e.metrics.ValidationRejects.Inc()
	}
}

func (e *Engine) countEmptyResolution() {
	if e.metrics != nil {
		e.metrics.EmptyResolutions.Inc()
	}
}

func (e *Engine) observePhase(phase string, start time.Time) {
	if e.metrics != nil {
		e.metrics.QueryPhaseDuration.WithLabelValues(phase).Observe(e.now().Sub(start).Seconds())
	}
}
