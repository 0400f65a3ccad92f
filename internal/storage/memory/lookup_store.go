package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/storage"
)

// LookupStore is an in-memory implementation of storage.LookupStore.
type LookupStore struct {
	mu     sync.RWMutex
	data   map[domain.Dimension]map[int64]*domain.LookupEntry
	nextID map[domain.Dimension]int64
}

// NewLookupStore creates a new in-memory lookup store.
func NewLookupStore() *LookupStore {
	data := make(map[domain.Dimension]map[int64]*domain.LookupEntry, len(domain.Dimensions))
	nextID := make(map[domain.Dimension]int64, len(domain.Dimensions))
	for _, dim := range domain.Dimensions {
		data[dim] = make(map[int64]*domain.LookupEntry)
		nextID[dim] = 1
	}
	return &LookupStore{data: data, nextID: nextID}
}

var _ storage.LookupStore = (*LookupStore)(nil)

// Create inserts a new lookup entry. Returns ErrDuplicateKey if the name
// already exists within the dimension.
func (s *LookupStore) Create(_ context.Context, e *domain.LookupEntry) (*domain.LookupEntry, error) {
	if !e.Dimension.Valid() {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, e.Dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data[e.Dimension] {
		if existing.Name == e.Name {
			return nil, storage.ErrDuplicateKey
		}
	}

	ts := now()
	entry := *e
	entry.ID = s.nextID[e.Dimension]
	entry.CreatedAt = ts
	entry.UpdatedAt = ts
	s.nextID[e.Dimension]++
	s.data[e.Dimension][entry.ID] = &entry

	result := entry
	return &result, nil
}

// GetByID retrieves an entry. Returns ErrNotFound if not exists.
func (s *LookupStore) GetByID(_ context.Context, dim domain.Dimension, id int64) (*domain.LookupEntry, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[dim][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	entry := *e
	return &entry, nil
}

// List retrieves entries matching the filter.
func (s *LookupStore) List(_ context.Context, dim domain.Dimension, f storage.LookupFilter) ([]*domain.LookupEntry, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	terms, err := storage.ParseOrderBy(f.OrderBy, map[string]bool{
		"id": true, "name": true, "created_at": true, "updated_at": true,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LookupEntry
	for _, e := range s.data[dim] {
		if len(f.IDIn) > 0 && !containsInt64(f.IDIn, e.ID) {
			continue
		}
		if f.NameILike != nil && !containsFold(e.Name, *f.NameILike) {
			continue
		}
		if len(f.NameIn) > 0 && !containsString(f.NameIn, e.Name) {
			continue
		}
		entry := *e
		result = append(result, &entry)
	}

	sort.Slice(result, func(i, j int) bool {
		for _, t := range terms {
			var less, eq bool
			switch t.Field {
			case "name":
				less, eq = result[i].Name < result[j].Name, result[i].Name == result[j].Name
			case "created_at":
				less, eq = result[i].CreatedAt.Before(result[j].CreatedAt), result[i].CreatedAt.Equal(result[j].CreatedAt)
			case "updated_at":
				less, eq = result[i].UpdatedAt.Before(result[j].UpdatedAt), result[i].UpdatedAt.Equal(result[j].UpdatedAt)
			default:
				less, eq = result[i].ID < result[j].ID, result[i].ID == result[j].ID
			}
			if !eq {
				if t.Desc {
					return !less
				}
				return less
			}
		}
		return result[i].ID < result[j].ID
	})

	return page(result, f.Skip, storage.ClampLimit(f.Limit)), nil
}

// Update applies a partial update and touches updated_at.
func (s *LookupStore) Update(_ context.Context, dim domain.Dimension, id int64, upd storage.LookupUpdate) (*domain.LookupEntry, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[dim][id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if upd.Name != nil && *upd.Name != e.Name {
		for _, existing := range s.data[dim] {
			if existing.ID != id && existing.Name == *upd.Name {
				return nil, storage.ErrDuplicateKey
			}
		}
		e.Name = *upd.Name
	}
	if upd.Description != nil {
		e.Description = upd.Description
	}
	if upd.Code != nil {
		e.Code = upd.Code
	}
	e.UpdatedAt = now()

	entry := *e
	return &entry, nil
}

// Names returns all names of a dimension, sorted and de-duplicated.
func (s *LookupStore) Names(_ context.Context, dim domain.Dimension) ([]string, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("%w: unknown dimension %q", storage.ErrInvalidInput, dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, e := range s.data[dim] {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

// nameOf resolves a lookup id to its name. Used by the series store to build
// metadata blocks and evaluate dimension name predicates.
func (s *LookupStore) nameOf(dim domain.Dimension, id *int64) *string {
	if id == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[dim][*id]
	if !ok {
		return nil
	}
	name := e.Name
	return &name
}

func containsInt64(haystack []int64, needle int64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// page applies skip/limit to a sorted slice.
func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
