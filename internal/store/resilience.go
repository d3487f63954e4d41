package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Observer receives one observation per logical store call (after retries).
type Observer interface {
	ObserveStoreCall(op, result string, elapsed time.Duration)
}

// Options configure WithResilience.
type Options struct {
	// Timeout bounds each attempt. Zero disables the per-call deadline.
	Timeout time.Duration
	// Attempts is the total number of tries for ErrUnavailable failures (min 1).
	Attempts int
	// Backoff is slept between attempts.
	Backoff time.Duration
	Metrics Observer
}

type resilientStore struct {
	next Store
	opts Options
}

// WithResilience wraps s so every call gets a bounded deadline and a small retry
// budget. Conflicts and validation failures are never retried, and a cancelled
// parent context stops retrying immediately.
func WithResilience(s Store, opts Options) Store {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &resilientStore{next: s, opts: opts}
}

func (r *resilientStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		err = r.attempt(ctx, fn)
		if err == nil || !errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
			break
		}
		if attempt < r.opts.Attempts && r.opts.Backoff > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.opts.Backoff):
			}
		}
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveStoreCall(op, resultLabel(err), time.Since(start))
	}
	return err
}

func (r *resilientStore) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	err := fn(callCtx)
	if err != nil && !errors.Is(err, ErrUnavailable) && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// the backend surfaced our own deadline as a plain error
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConditionFailed):
		return "conflict"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (r *resilientStore) Get(ctx context.Context, key Key, opts ...ReadOption) (Item, bool, error) {
	var (
		item  Item
		found bool
	)
	err := r.do(ctx, "get", func(ctx context.Context) error {
		var err error
		item, found, err = r.next.Get(ctx, key, opts...)
		return err
	})
	return item, found, err
}

func (r *resilientStore) Put(ctx context.Context, item Item, cond *Condition) error {
	return r.do(ctx, "put", func(ctx context.Context) error {
		return r.next.Put(ctx, item, cond)
	})
}

func (r *resilientStore) Query(ctx context.Context, in QueryInput) (Page, error) {
	var page Page
	err := r.do(ctx, "query", func(ctx context.Context) error {
		var err error
		page, err = r.next.Query(ctx, in)
		return err
	})
	return page, err
}

func (r *resilientStore) BatchGet(ctx context.Context, keys []Key) ([]Item, error) {
	var items []Item
	err := r.do(ctx, "batch_get", func(ctx context.Context) error {
		var err error
		items, err = r.next.BatchGet(ctx, keys)
		return err
	})
	return items, err
}

func (r *resilientStore) Delete(ctx context.Context, key Key) error {
	return r.do(ctx, "delete", func(ctx context.Context) error {
		return r.next.Delete(ctx, key)
	})
}

func (r *resilientStore) Scan(ctx context.Context, f Filter, limit int) ([]Item, error) {
	var items []Item
	err := r.do(ctx, "scan", func(ctx context.Context) error {
		var err error
		items, err = r.next.Scan(ctx, f, limit)
		return err
	})
	return items, err
}

// Add is retried like the rest. A retry after an ambiguous timeout can apply the
// delta twice; counters tolerate that drift.
func (r *resilientStore) Add(ctx context.Context, key Key, attr string, delta int64) (int64, error) {
	var n int64
	err := r.do(ctx, "add", func(ctx context.Context) error {
		var err error
		n, err = r.next.Add(ctx, key, attr, delta)
		return err
	})
	return n, err
}
