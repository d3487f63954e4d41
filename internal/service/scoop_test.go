package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
)

// scoopAt creates a scoop as if it were posted at the given time.
func (e *testEnv) scoopAt(t *testing.T, userID string, at time.Time) *model.Scoop {
	t.Helper()
	prev := e.scoops.now
	e.scoops.now = func() time.Time { return at }
	defer func() { e.scoops.now = prev }()
	sc, err := e.scoops.Create(context.Background(), userID, model.CreateScoopRequest{
		MediaKey:  ScoopKeyPrefix + userID + "/" + at.Format("150405.000") + ".jpg",
		MediaType: model.ScoopMediaImage,
	})
	require.NoError(t, err)
	return sc
}

func TestScoop_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "alice")

	for _, key := range []string{"", "posts/x.jpg", ScoopKeyPrefix} {
		_, err := env.scoops.Create(ctx, a, model.CreateScoopRequest{MediaKey: key, MediaType: model.ScoopMediaImage})
		assert.ErrorIs(t, err, model.ErrInvalidScoopKey, key)
	}
	_, err := env.scoops.Create(ctx, a, model.CreateScoopRequest{MediaKey: ScoopKeyPrefix + "x.gif", MediaType: "gif"})
	assert.ErrorIs(t, err, model.ErrValidation)

	sc, err := env.scoops.Create(ctx, a, model.CreateScoopRequest{MediaKey: ScoopKeyPrefix + "x.mp4", MediaType: model.ScoopMediaVideo, Caption: " hi "})
	require.NoError(t, err)
	assert.Equal(t, "hi", sc.Caption)
	assert.Equal(t, model.ScoopLifetime, sc.ExpiresAt.Sub(sc.CreatedAt))
}

func TestScoop_Disabled(t *testing.T) {
	svc := NewScoopService(nil, nil, nil, nil, nil, 0, zap.NewNop())
	assert.False(t, svc.Enabled())

	_, err := svc.Feed(context.Background(), "u")
	assert.ErrorIs(t, err, model.ErrScoopsDisabled)
	_, err = svc.Create(context.Background(), "u", model.CreateScoopRequest{})
	assert.ErrorIs(t, err, model.ErrNotEnabled)
	assert.True(t, svc.DeleteAllByUser(context.Background(), "u").Skipped)
}

func TestScoop_FeedGroupsAndOrders(t *testing.T) {
	env := newTestEnv(t)
	a, b, c, d := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol"), env.user(t, "dave")
	env.follow(t, a, b)
	env.follow(t, a, c)
	now := time.Now()

	own := env.scoopAt(t, a, now.Add(-5*time.Hour))
	b1 := env.scoopAt(t, b, now.Add(-3*time.Hour))
	b2 := env.scoopAt(t, b, now.Add(-2*time.Hour))
	c1 := env.scoopAt(t, c, now.Add(-time.Hour))
	env.scoopAt(t, c, now.Add(-25*time.Hour)) // expired
	env.scoopAt(t, d, now.Add(-time.Minute))  // not followed

	feed, err := env.scoops.Feed(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, feed.Groups, 3)

	assert.Equal(t, a, feed.Groups[0].Author.ID, "viewer's own group first")
	assert.Equal(t, own.ID, feed.Groups[0].Scoops[0].ID)

	assert.Equal(t, c, feed.Groups[1].Author.ID, "then by newest scoop")
	require.Len(t, feed.Groups[1].Scoops, 1)
	assert.Equal(t, c1.ID, feed.Groups[1].Scoops[0].ID)

	assert.Equal(t, b, feed.Groups[2].Author.ID)
	require.Len(t, feed.Groups[2].Scoops, 2)
	assert.Equal(t, []string{b1.ID, b2.ID}, []string{feed.Groups[2].Scoops[0].ID, feed.Groups[2].Scoops[1].ID}, "oldest first within a group")
	assert.Equal(t, "bob", feed.Groups[2].Author.Handle)
}

func TestScoop_FeedSkipsBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, a, b)
	env.scoopAt(t, b, time.Now().Add(-time.Minute))

	_, err := env.scoops.View(ctx, a, env.scoopAt(t, b, time.Now()).ID)
	require.NoError(t, err)

	_, err = env.relationships.Block(ctx, b, a)
	require.NoError(t, err)

	feed, err := env.scoops.Feed(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, feed.Groups)
}

func TestScoop_ViewRecordedOncePerViewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	env.follow(t, b, a)
	sc := env.scoopAt(t, a, time.Now().Add(-time.Minute))

	res, err := env.scoops.View(ctx, a, sc.ID)
	require.NoError(t, err)
	assert.False(t, res.Recorded, "own views are not recorded")

	res, err = env.scoops.View(ctx, b, sc.ID)
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Equal(t, int64(1), res.ViewCount)

	res, err = env.scoops.View(ctx, b, sc.ID)
	require.NoError(t, err)
	assert.False(t, res.Recorded)
	assert.Equal(t, int64(1), res.ViewCount)

	_, err = env.scoops.View(ctx, c, sc.ID)
	assert.ErrorIs(t, err, model.ErrProfilePrivate)

	viewers, err := env.scoops.Viewers(ctx, a, sc.ID)
	require.NoError(t, err)
	require.Equal(t, 1, viewers.Count)
	assert.Equal(t, "bob", viewers.Users[0].Handle)

	_, err = env.scoops.Viewers(ctx, b, sc.ID)
	assert.ErrorIs(t, err, model.ErrNotScoopOwner)
}

func TestScoop_ExpiredIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, b, a)
	sc := env.scoopAt(t, a, time.Now().Add(-model.ScoopLifetime-time.Second))

	_, err := env.scoops.View(context.Background(), b, sc.ID)
	assert.ErrorIs(t, err, model.ErrScoopNotFound)
}

func TestScoop_DeleteAndPurge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")
	now := time.Now()
	live := env.scoopAt(t, a, now.Add(-time.Hour))
	old := env.scoopAt(t, a, now.Add(-30*time.Hour))
	mine := env.scoopAt(t, b, now.Add(-time.Minute))

	assert.ErrorIs(t, env.scoops.Delete(ctx, a, mine.ID), model.ErrNotScoopOwner)
	require.NoError(t, env.scoops.Delete(ctx, b, mine.ID))
	assert.Contains(t, env.objects.deleted, mine.MediaKey)

	purged, err := env.scoops.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Contains(t, env.objects.deleted, old.MediaKey)

	_, err = env.scoopRepo.Get(ctx, old.ID)
	assert.ErrorIs(t, err, model.ErrScoopNotFound)
	_, err = env.scoopRepo.Get(ctx, live.ID)
	assert.NoError(t, err)

	assert.True(t, env.scoops.DeleteAllByUser(ctx, a).OK())
	_, err = env.scoopRepo.Get(ctx, live.ID)
	assert.ErrorIs(t, err, model.ErrScoopNotFound)
}
