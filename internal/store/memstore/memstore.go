// Package memstore is an in-process store.Store used by tests and by local
// development (STORE_BACKEND=memory).
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"scoop_backend/internal/store"
)

// Store keeps partitions in nested maps guarded by one RWMutex.
type Store struct {
	mu    sync.RWMutex
	parts map[string]map[string]map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{parts: make(map[string]map[string]map[string]any)}
}

var _ store.Store = (*Store)(nil)

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) lookup(key store.Key) (map[string]any, bool) {
	part, ok := s.parts[key.PK]
	if !ok {
		return nil, false
	}
	attrs, ok := part[key.SK]
	return attrs, ok
}

func (s *Store) Get(ctx context.Context, key store.Key, _ ...store.ReadOption) (store.Item, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return store.Item{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs, ok := s.lookup(key)
	if !ok {
		return store.Item{}, false, nil
	}
	return store.Item{PK: key.PK, SK: key.SK, Attrs: cloneMap(attrs)}, true, nil
}

func (s *Store) Put(ctx context.Context, item store.Item, cond *store.Condition) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cond != nil {
		var current *store.Item
		if attrs, ok := s.lookup(item.Key()); ok {
			current = &store.Item{PK: item.PK, SK: item.SK, Attrs: attrs}
		}
		if !cond.Holds(current) {
			return store.ErrConditionFailed
		}
	}
	part, ok := s.parts[item.PK]
	if !ok {
		part = make(map[string]map[string]any)
		s.parts[item.PK] = part
	}
	part[item.SK] = cloneMap(item.Attrs)
	return nil
}

func (s *Store) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	if err := checkCtx(ctx); err != nil {
		return store.Page{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.parts[in.PK]
	sks := make([]string, 0, len(part))
	for sk := range part {
		if in.SKPrefix != "" && !strings.HasPrefix(sk, in.SKPrefix) {
			continue
		}
		if in.SKFrom != "" && sk < in.SKFrom {
			continue
		}
		if in.SKTo != "" && sk > in.SKTo {
			continue
		}
		sks = append(sks, sk)
	}
	if in.Descending {
		sort.Sort(sort.Reverse(sort.StringSlice(sks)))
	} else {
		sort.Strings(sks)
	}

	if in.Cursor != "" {
		idx := sort.Search(len(sks), func(i int) bool {
			if in.Descending {
				return sks[i] < in.Cursor
			}
			return sks[i] > in.Cursor
		})
		sks = sks[idx:]
	}

	var page store.Page
	for i, sk := range sks {
		if in.Limit > 0 && i == in.Limit {
			page.Next = sks[i-1]
			break
		}
		page.Items = append(page.Items, store.Item{PK: in.PK, SK: sk, Attrs: cloneMap(part[sk])})
	}
	return page, nil
}

func (s *Store) BatchGet(ctx context.Context, keys []store.Key) ([]store.Item, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[store.Key]bool, len(keys))
	var out []store.Item
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if attrs, ok := s.lookup(k); ok {
			out = append(out, store.Item{PK: k.PK, SK: k.SK, Attrs: cloneMap(attrs)})
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key store.Key) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if part, ok := s.parts[key.PK]; ok {
		delete(part, key.SK)
		if len(part) == 0 {
			delete(s.parts, key.PK)
		}
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, f store.Filter, limit int) ([]store.Item, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	pks := make([]string, 0, len(s.parts))
	for pk := range s.parts {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	var out []store.Item
	for _, pk := range pks {
		part := s.parts[pk]
		sks := make([]string, 0, len(part))
		for sk := range part {
			sks = append(sks, sk)
		}
		sort.Strings(sks)
		for _, sk := range sks {
			it := store.Item{PK: pk, SK: sk, Attrs: part[sk]}
			if !f.Matches(it) {
				continue
			}
			it.Attrs = cloneMap(it.Attrs)
			out = append(out, it)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	part, ok := s.parts[key.PK]
	if !ok {
		part = make(map[string]map[string]any)
		s.parts[key.PK] = part
	}
	attrs, ok := part[key.SK]
	if !ok {
		attrs = make(map[string]any)
		part[key.SK] = attrs
	}
	current, _ := store.ToInt64(attrs[attr])
	current += delta
	attrs[attr] = float64(current)
	return current, nil
}

// Len reports the number of stored items. Tests use it to assert cascades.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, part := range s.parts {
		n += len(part)
	}
	return n
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
