package repository

import (
	"context"
	"fmt"

	"scoop_backend/internal/store"
)

// getInto loads key into v and reports whether it existed.
func getInto(ctx context.Context, s store.Store, key store.Key, v any, opts ...store.ReadOption) (bool, error) {
	item, found, err := s.Get(ctx, key, opts...)
	if err != nil || !found {
		return false, err
	}
	if err := item.Decode(v); err != nil {
		return false, err
	}
	return true, nil
}

// putFrom stores v at key.
func putFrom(ctx context.Context, s store.Store, key store.Key, v any, cond *store.Condition) error {
	item, err := store.NewItem(key, v)
	if err != nil {
		return err
	}
	return s.Put(ctx, item, cond)
}

// decodeAll maps items onto T, skipping undecodable items.
func decodeAll[T any](items []store.Item) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		var v T
		if err := it.Decode(&v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// queryInto pages through in and decodes up to max items (max <= 0 means all).
func queryInto[T any](ctx context.Context, s store.Store, in store.QueryInput, max int) ([]T, error) {
	items, err := store.QueryAll(ctx, s, in, max)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](items), nil
}

// suffixes returns the SK remainder after prefix for every item in the partition slice.
func suffixes(ctx context.Context, s store.Store, pk, prefix string) ([]string, error) {
	items, err := store.QueryAll(ctx, s, store.QueryInput{PK: pk, SKPrefix: prefix}, 0)
	if err != nil {
		return nil, fmt.Errorf("query %s%s: %w", pk, prefix, err)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if id, ok := store.Suffix(it.SK, prefix); ok {
			out = append(out, id)
		}
	}
	return out, nil
}
