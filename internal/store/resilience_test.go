package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoop_backend/internal/store"
	"scoop_backend/internal/store/memstore"
)

type recorder struct {
	mu      sync.Mutex
	results map[string][]string
}

func (r *recorder) ObserveStoreCall(op, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string][]string{}
	}
	r.results[op] = append(r.results[op], result)
}

func TestWithResilience_RetriesUnavailable(t *testing.T) {
	calls := 0
	faulty := memstore.WithFaults(memstore.New(), func(op string, _ store.Key) error {
		if op != "get" {
			return nil
		}
		calls++
		if calls == 1 {
			return store.ErrUnavailable
		}
		return nil
	})
	rec := &recorder{}
	s := store.WithResilience(faulty, store.Options{Timeout: time.Second, Attempts: 2, Metrics: rec})

	_, found, err := s.Get(context.Background(), store.UserKey("u1"))

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"ok"}, rec.results["get"])
}

func TestWithResilience_GivesUpAfterBudget(t *testing.T) {
	calls := 0
	faulty := memstore.WithFaults(memstore.New(), func(op string, _ store.Key) error {
		calls++
		return store.ErrUnavailable
	})
	s := store.WithResilience(faulty, store.Options{Attempts: 2})

	_, err := s.Query(context.Background(), store.QueryInput{PK: "POSTS"})

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 2, calls)
}

func TestWithResilience_DoesNotRetryConflicts(t *testing.T) {
	mem := memstore.New()
	calls := 0
	faulty := memstore.WithFaults(mem, func(op string, _ store.Key) error {
		calls++
		return nil
	})
	s := store.WithResilience(faulty, store.Options{Attempts: 3})
	ctx := context.Background()

	item, err := store.NewItem(store.HandleKey("bob"), map[string]string{"userId": "u1"})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, item, store.NotExists()))

	calls = 0
	err = s.Put(ctx, item, store.NotExists())

	assert.ErrorIs(t, err, store.ErrConditionFailed)
	assert.Equal(t, 1, calls)
}

func TestWithResilience_TimeoutSurfacesAsUnavailable(t *testing.T) {
	slow := memstore.WithFaults(memstore.New(), func(string, store.Key) error { return nil })
	s := store.WithResilience(&blockingStore{Store: slow}, store.Options{Timeout: 20 * time.Millisecond, Attempts: 1})

	_, _, err := s.Get(context.Background(), store.UserKey("u1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestWithResilience_StopsOnParentCancel(t *testing.T) {
	calls := 0
	faulty := memstore.WithFaults(memstore.New(), func(string, store.Key) error {
		calls++
		return store.ErrUnavailable
	})
	s := store.WithResilience(faulty, store.Options{Attempts: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, store.UserKey("u1"))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// blockingStore waits for the context deadline and then returns a bare error.
type blockingStore struct {
	store.Store
}

func (b *blockingStore) Get(ctx context.Context, _ store.Key, _ ...store.ReadOption) (store.Item, bool, error) {
	<-ctx.Done()
	return store.Item{}, false, errors.New("request canceled")
}
