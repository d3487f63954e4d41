package memstore

import (
	"context"

	"scoop_backend/internal/store"
)

// FaultFunc decides whether an operation on key should fail. Query passes the
// partition with an empty SK; Scan passes a zero key; BatchGet passes its first key.
type FaultFunc func(op string, key store.Key) error

// Faulty wraps a store and injects failures, for exercising degradation paths.
type Faulty struct {
	store.Store
	Fail FaultFunc
}

// WithFaults wraps s with fail.
func WithFaults(s store.Store, fail FaultFunc) *Faulty {
	return &Faulty{Store: s, Fail: fail}
}

func (f *Faulty) check(op string, key store.Key) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail(op, key)
}

func (f *Faulty) Get(ctx context.Context, key store.Key, opts ...store.ReadOption) (store.Item, bool, error) {
	if err := f.check("get", key); err != nil {
		return store.Item{}, false, err
	}
	return f.Store.Get(ctx, key, opts...)
}

func (f *Faulty) Put(ctx context.Context, item store.Item, cond *store.Condition) error {
	if err := f.check("put", item.Key()); err != nil {
		return err
	}
	return f.Store.Put(ctx, item, cond)
}

func (f *Faulty) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	if err := f.check("query", store.Key{PK: in.PK, SK: in.SKPrefix}); err != nil {
		return store.Page{}, err
	}
	return f.Store.Query(ctx, in)
}

func (f *Faulty) BatchGet(ctx context.Context, keys []store.Key) ([]store.Item, error) {
	var first store.Key
	if len(keys) > 0 {
		first = keys[0]
	}
	if err := f.check("batch_get", first); err != nil {
		return nil, err
	}
	return f.Store.BatchGet(ctx, keys)
}

func (f *Faulty) Delete(ctx context.Context, key store.Key) error {
	if err := f.check("delete", key); err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

func (f *Faulty) Scan(ctx context.Context, flt store.Filter, limit int) ([]store.Item, error) {
	if err := f.check("scan", store.Key{}); err != nil {
		return nil, err
	}
	return f.Store.Scan(ctx, flt, limit)
}

func (f *Faulty) Add(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	if err := f.check("add", key); err != nil {
		return 0, err
	}
	return f.Store.Add(ctx, key, attr, delta)
}
