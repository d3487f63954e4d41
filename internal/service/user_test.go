package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
	"scoop_backend/internal/store/memstore"
)

func TestUserService_GetOrCreate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.users.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	second, err := env.users.GetOrCreate(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestUserService_ClaimHandle_RejectsBadFormatBeforeStoreAccess(t *testing.T) {
	touched := false
	faulty := memstore.WithFaults(memstore.New(), func(string, store.Key) error {
		touched = true
		return nil
	})
	env := newTestEnvWithStore(t, faulty)

	for _, candidate := range []string{"ab", "has space", "toolong_toolong_toolong", "bad-char"} {
		_, err := env.users.ClaimHandle(context.Background(), "u1", candidate)
		assert.ErrorIs(t, err, model.ErrInvalidHandle, candidate)
	}
	assert.False(t, touched, "store must not be touched for invalid handles")
}

func TestUserService_ClaimHandle_CaseInsensitiveUniqueness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.ClaimHandle(ctx, "u1", "Alice")
	require.NoError(t, err)

	_, err = env.users.ClaimHandle(ctx, "u2", "ALICE")
	assert.ErrorIs(t, err, model.ErrHandleTaken)
	assert.ErrorIs(t, err, model.ErrConflict)

	id, err := env.users.ResolveHandle(ctx, "@alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestUserService_ClaimHandle_ConcurrentClaimsOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.users.ClaimHandle(ctx, "user-"+string(rune('a'+i)), "samename")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, model.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	owner, err := env.users.ResolveHandle(ctx, "samename")
	require.NoError(t, err)
	user, err := env.users.GetByID(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "samename", user.Handle, "mapping and record must agree")
}

func TestUserService_ClaimHandle_RenameReleasesOldHandle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.ClaimHandle(ctx, "u1", "first")
	require.NoError(t, err)
	_, err = env.users.ClaimHandle(ctx, "u1", "second")
	require.NoError(t, err)

	_, err = env.users.ResolveHandle(ctx, "first")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = env.users.ClaimHandle(ctx, "u2", "first")
	assert.NoError(t, err, "released handle is claimable again")
}

func TestUserService_ClaimHandle_RollsBackMappingWhenRecordWriteFails(t *testing.T) {
	failProfile := false
	faulty := memstore.WithFaults(memstore.New(), func(op string, key store.Key) error {
		if failProfile && op == "put" && key.SK == store.SKProfile {
			return store.ErrUnavailable
		}
		return nil
	})
	env := newTestEnvWithStore(t, faulty)
	ctx := context.Background()

	_, err := env.users.GetOrCreate(ctx, "u1")
	require.NoError(t, err)

	failProfile = true
	_, err = env.users.ClaimHandle(ctx, "u1", "orphan")
	require.Error(t, err)

	_, err = env.users.ResolveHandle(ctx, "orphan")
	assert.ErrorIs(t, err, model.ErrUserNotFound, "mapping must not outlive a failed record write")
}

func TestUserService_ResolveSummaries_Dedupes(t *testing.T) {
	env := newTestEnv(t)
	a := env.user(t, "alice")
	b := env.user(t, "bob")

	got, err := env.users.ResolveSummaries(context.Background(), []string{a, b, a, "", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "alice", got[a].Handle)
	assert.Equal(t, "bob", got[b].Handle)
}

func TestUserService_ResolveSummaries_FallsBackToBoundedLookups(t *testing.T) {
	failBatch := false
	gets := 0
	var mu sync.Mutex
	faulty := memstore.WithFaults(memstore.New(), func(op string, key store.Key) error {
		if !failBatch {
			return nil
		}
		switch op {
		case "batch_get":
			return errors.New("batch path down")
		case "get":
			mu.Lock()
			gets++
			mu.Unlock()
		}
		return nil
	})
	env := newTestEnvWithStore(t, faulty)

	var ids []string
	for _, h := range []string{"user_a", "user_b", "user_c", "user_d", "user_e", "user_f", "user_g"} {
		ids = append(ids, env.user(t, h))
	}

	failBatch = true
	got, err := env.users.ResolveSummaries(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, got, maxSummaryFallback)
	assert.Equal(t, maxSummaryFallback, gets)
}

func TestUserService_ResolveSummaries_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	var (
		mu        sync.Mutex
		armed     bool
		blocked   bool
		entered   = make(chan struct{})
		release   = make(chan struct{})
		bobUserPK string
	)
	faulty := memstore.WithFaults(memstore.New(), func(op string, key store.Key) error {
		mu.Lock()
		on := armed
		first := on && op == "get" && key.PK == bobUserPK && !blocked
		if first {
			blocked = true
		}
		mu.Unlock()
		if !on {
			return nil
		}
		switch {
		case op == "batch_get":
			return errors.New("batch path down")
		case first:
			close(entered)
			<-release
		}
		return nil
	})
	env := newTestEnvWithStore(t, faulty)
	bob := env.user(t, "bob")

	mu.Lock()
	bobUserPK = store.UserPK(bob)
	armed = true
	mu.Unlock()

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan map[string]model.UserSummary)
	go func() {
		got, _ := env.users.ResolveSummaries(ctxA, []string{bob})
		doneA <- got
	}()
	<-entered

	doneB := make(chan map[string]model.UserSummary)
	go func() {
		got, err := env.users.ResolveSummaries(context.Background(), []string{bob})
		assert.NoError(t, err)
		doneB <- got
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.Empty(t, <-doneA, "cancelled caller stops waiting")

	close(release)
	got := <-doneB
	require.Contains(t, got, bob)
	assert.Equal(t, "bob", got[bob].Handle)
}

func TestUserService_SetInviteCode(t *testing.T) {
	env := newTestEnv(t)
	id := env.user(t, "carol")

	require.NoError(t, env.users.SetInviteCode(context.Background(), id, "ABCD1234"))

	user, err := env.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", user.InviteCode)
	assert.Equal(t, "carol", user.Handle)
}

func TestUserService_UpdateProfile_OnlyTouchesGivenFields(t *testing.T) {
	env := newTestEnv(t)
	id := env.user(t, "dave")
	name := "Dave"
	off := false

	user, err := env.users.UpdateProfile(context.Background(), id, model.UpdateProfileRequest{
		DisplayName:   &name,
		Notifications: &model.NotificationPreferences{Reactions: &off},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dave", user.DisplayName)
	assert.Equal(t, "dave", user.Handle)
	assert.False(t, user.Notifications.ReactionsEnabled())
	assert.True(t, user.Notifications.MentionsEnabled())
}
