package query

import (
	"context"
	"fmt"
	"sync/atomic"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// Snapshot is an immutable view of the valid values per lookup dimension.
// Filter values with a dimension predicate are validated against it by set
// membership; a snapshot is never mutated in place, only replaced.
type Snapshot struct {
	values map[domain.Dimension]map[string]struct{}
}

// NewSnapshot builds a snapshot from explicit per-dimension value lists.
func NewSnapshot(values map[domain.Dimension][]string) *Snapshot {
	s := &Snapshot{values: make(map[domain.Dimension]map[string]struct{}, len(values))}
	for dim, names := range values {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		s.values[dim] = set
	}
	return s
}

// DefaultSnapshot builds a snapshot from the compiled-in dimension values.
func DefaultSnapshot() *Snapshot {
	return NewSnapshot(domain.DefaultDimensionValues)
}

// Contains reports whether name is a valid value of the dimension.
func (s *Snapshot) Contains(dim domain.Dimension, name string) bool {
	set, ok := s.values[dim]
	if !ok {
		return false
	}
	_, ok = set[name]
	return ok
}

// Validate checks every name against the dimension's value set.
func (s *Snapshot) Validate(dim domain.Dimension, names []string) error {
	for _, n := range names {
		if !s.Contains(dim, n) {
			return fmt.Errorf("unknown %s value %q", dim, n)
		}
	}
	return nil
}

// SnapshotHolder holds the current snapshot behind a single atomically
// swapped reference. Concurrent readers always see a complete snapshot.
type SnapshotHolder struct {
	current atomic.Pointer[Snapshot]
	lookups storage.LookupStore
}

// NewSnapshotHolder seeds the holder with the compiled-in defaults. Call
// Refresh to replace them with database values.
func NewSnapshotHolder(lookups storage.LookupStore) *SnapshotHolder {
	h := &SnapshotHolder{lookups: lookups}
	h.current.Store(DefaultSnapshot())
	return h
}

// Current returns the active snapshot.
func (h *SnapshotHolder) Current() *Snapshot {
	return h.current.Load()
}

// Refresh builds a new snapshot from the lookup tables and swaps it in.
// Dimensions with no rows keep their compiled-in default values, so an
// unseeded database still validates against the known constants.
func (h *SnapshotHolder) Refresh(ctx context.Context) (*Snapshot, error) {
	values := make(map[domain.Dimension][]string, len(domain.Dimensions))
	for _, dim := range domain.Dimensions {
		names, err := h.lookups.Names(ctx, dim)
		if err != nil {
			return nil, fmt.Errorf("refresh %s values: %w", dim, err)
		}
		if len(names) == 0 {
			names = domain.DefaultDimensionValues[dim]
		}
		values[dim] = names
	}

	snap := NewSnapshot(values)
	h.current.Store(snap)
	return snap, nil
}
