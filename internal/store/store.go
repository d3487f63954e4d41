// Package store is the graph store adapter: a typed partition-key / sort-key
// view over a key-value backend. Repositories map Items to entity structs;
// backends (dynamo, postgres, memstore) implement Store.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"scoop_backend/internal/model"
)

var (
	// ErrConditionFailed is returned by Put when the write condition does not hold.
	ErrConditionFailed = model.NewError(model.ErrConflict, "conditional write failed")
	// ErrUnavailable marks network, timeout and throttling failures. Only these are retried.
	ErrUnavailable = model.NewError(model.ErrUnavailable, "store unavailable")
)

// Key addresses one item.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string { return k.PK + "|" + k.SK }

// Item is a stored record. Attrs never contains the PK / SK attributes.
type Item struct {
	PK    string
	SK    string
	Attrs map[string]any
}

// Key returns the item's address.
func (i Item) Key() Key { return Key{PK: i.PK, SK: i.SK} }

// NewItem builds an item at key from v's JSON representation.
func NewItem(key Key, v any) (Item, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Item{}, fmt.Errorf("marshal item %s: %w", key, err)
	}
	attrs := map[string]any{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return Item{}, fmt.Errorf("item %s is not an object: %w", key, err)
	}
	delete(attrs, "PK")
	delete(attrs, "SK")
	return Item{PK: key.PK, SK: key.SK, Attrs: attrs}, nil
}

// Decode maps the item's attributes onto v using v's JSON tags.
func (i Item) Decode(v any) error {
	raw, err := json.Marshal(i.Attrs)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", i.Key(), err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode item %s: %w", i.Key(), err)
	}
	return nil
}

// String returns a string attribute, or "".
func (i Item) String(attr string) string {
	s, _ := i.Attrs[attr].(string)
	return s
}

// Int returns a numeric attribute as int64, or 0.
func (i Item) Int(attr string) int64 {
	n, _ := ToInt64(i.Attrs[attr])
	return n
}

// Condition guards a Put. With MustNotExist the write passes when the item is
// absent; with AttrName it passes when the stored attribute equals AttrValue.
// When both are set either branch is enough.
type Condition struct {
	MustNotExist bool
	AttrName     string
	AttrValue    any
}

// NotExists is the common "create only" condition.
func NotExists() *Condition { return &Condition{MustNotExist: true} }

// Holds evaluates the condition against the current item (nil when absent).
func (c *Condition) Holds(current *Item) bool {
	if c == nil {
		return true
	}
	if current == nil {
		return c.MustNotExist
	}
	if c.AttrName == "" {
		return false
	}
	return SameValue(current.Attrs[c.AttrName], c.AttrValue)
}

// ReadOptions tune Get and Query.
type ReadOptions struct {
	Consistent bool
}

type ReadOption func(*ReadOptions)

// Consistent requests a strongly consistent read where the backend supports it.
func Consistent() ReadOption {
	return func(o *ReadOptions) { o.Consistent = true }
}

// ApplyReadOptions folds opts into a ReadOptions value.
func ApplyReadOptions(opts ...ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// QueryInput selects items of one partition. SKPrefix and the SKFrom/SKTo range
// (both inclusive, either may be empty) may be combined.
type QueryInput struct {
	PK         string
	SKPrefix   string
	SKFrom     string
	SKTo       string
	Limit      int
	Descending bool
	// Cursor is the SK of the last item of the previous page.
	Cursor     string
	Consistent bool
}

// Page is one query result page. Next is empty on the last page.
type Page struct {
	Items []Item
	Next  string
}

// Filter restricts a Scan. Empty fields match everything.
type Filter struct {
	PKPrefix string
	SKPrefix string
	SKEquals string
	Equals   map[string]any
}

// Matches evaluates the filter against an item in memory.
func (f Filter) Matches(it Item) bool {
	if f.PKPrefix != "" && !hasPrefix(it.PK, f.PKPrefix) {
		return false
	}
	if f.SKPrefix != "" && !hasPrefix(it.SK, f.SKPrefix) {
		return false
	}
	if f.SKEquals != "" && it.SK != f.SKEquals {
		return false
	}
	for k, v := range f.Equals {
		if !SameValue(it.Attrs[k], v) {
			return false
		}
	}
	return true
}

func hasPrefix(s, p string) bool { return len(s) >= len(p) && s[:len(p)] == p }

// Store is the contract every backend implements. All operations are
// idempotent at the key level.
type Store interface {
	Get(ctx context.Context, key Key, opts ...ReadOption) (Item, bool, error)
	Put(ctx context.Context, item Item, cond *Condition) error
	Query(ctx context.Context, in QueryInput) (Page, error)
	// BatchGet returns the items that exist, in no particular order. Missing keys are skipped.
	BatchGet(ctx context.Context, keys []Key) ([]Item, error)
	Delete(ctx context.Context, key Key) error
	Scan(ctx context.Context, f Filter, limit int) ([]Item, error)
	// Add atomically adjusts a numeric attribute, creating the item if needed,
	// and returns the new value.
	Add(ctx context.Context, key Key, attr string, delta int64) (int64, error)
}

// QueryAll pages through a query until exhausted or max items were collected (max <= 0 means no cap).
func QueryAll(ctx context.Context, s Store, in QueryInput, max int) ([]Item, error) {
	var out []Item
	for {
		if max > 0 {
			in.Limit = max - len(out)
		}
		page, err := s.Query(ctx, in)
		if err != nil {
			return out, err
		}
		out = append(out, page.Items...)
		if page.Next == "" || (max > 0 && len(out) >= max) {
			return out, nil
		}
		in.Cursor = page.Next
	}
}
