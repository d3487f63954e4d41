package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
	"scoop_backend/internal/store/memstore"
)

func TestRelationship_SelfOperationsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "alice")

	_, err := env.relationships.Follow(ctx, a, a)
	assert.ErrorIs(t, err, model.ErrCannotFollowSelf)
	_, err = env.relationships.Unfollow(ctx, a, a)
	assert.ErrorIs(t, err, model.ErrCannotFollowSelf)
	_, err = env.relationships.Block(ctx, a, a)
	assert.ErrorIs(t, err, model.ErrCannotBlockSelf)
	_, err = env.relationships.RequestFollow(ctx, a, a)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRelationship_FollowIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")

	env.follow(t, a, b)
	env.follow(t, a, b)

	count, err := env.relationships.CountFollowers(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, countType(env.notificationsOf(t, b), model.NotificationTypeFollow))
}

func TestRelationship_UnfollowRemovesNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, a, b)

	ack, err := env.relationships.Unfollow(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, model.StateNotFollowing, ack.State)

	following, err := env.relationships.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, following)
	assert.Zero(t, countType(env.notificationsOf(t, b), model.NotificationTypeFollow))
}

func TestRelationship_RequestThenAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")

	_, err := env.relationships.RequestFollow(ctx, a, b)
	require.NoError(t, err)
	_, err = env.relationships.RequestFollow(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, countType(env.notificationsOf(t, b), model.NotificationTypeFollowRequest), "repeat request is a no-op")

	pending, err := env.relationships.HasPendingRequest(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, pending)

	ack, err := env.relationships.AcceptRequest(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, model.StateFollowing, ack.State)

	following, err := env.relationships.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, following)

	pending, err = env.relationships.HasPendingRequest(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, pending)

	assert.Equal(t, 1, countType(env.notificationsOf(t, a), model.NotificationTypeFollowAccept))
}

func TestRelationship_RequestThenDecline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")

	_, err := env.relationships.RequestFollow(ctx, a, b)
	require.NoError(t, err)

	_, err = env.relationships.DeclineRequest(ctx, b, a)
	require.NoError(t, err)

	following, err := env.relationships.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, following)

	pending, err := env.relationships.HasPendingRequest(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, 1, countType(env.notificationsOf(t, a), model.NotificationTypeFollowDeclined))

	// declining again has nothing to remove and sends nothing
	_, err = env.relationships.DeclineRequest(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, 1, countType(env.notificationsOf(t, a), model.NotificationTypeFollowDeclined))
}

func TestRelationship_AcceptWithoutRequest(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.user(t, "alice"), env.user(t, "bob")

	_, err := env.relationships.AcceptRequest(context.Background(), b, a)
	assert.ErrorIs(t, err, model.ErrNoPendingRequest)
}

func TestRelationship_RepeatAcceptIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")

	_, err := env.relationships.RequestFollow(ctx, a, b)
	require.NoError(t, err)
	_, err = env.relationships.AcceptRequest(ctx, b, a)
	require.NoError(t, err)

	ack, err := env.relationships.AcceptRequest(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Equal(t, model.StateFollowing, ack.State)
	assert.Equal(t, 1, countType(env.notificationsOf(t, a), model.NotificationTypeFollowAccept), "accepted once, notified once")
}

func TestRelationship_CancelRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")

	_, err := env.relationships.RequestFollow(ctx, a, b)
	require.NoError(t, err)
	_, err = env.relationships.CancelRequest(ctx, a, b)
	require.NoError(t, err)

	pending, err := env.relationships.HasPendingRequest(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestRelationship_BlockSeversFollowsBothWays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, a, b)
	env.follow(t, b, a)

	_, err := env.relationships.Block(ctx, a, b)
	require.NoError(t, err)

	for _, pair := range [][2]string{{a, b}, {b, a}} {
		following, err := env.relationships.IsFollowing(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, following)
	}
	assert.Zero(t, countType(env.notificationsOf(t, a), model.NotificationTypeFollow))
	assert.Zero(t, countType(env.notificationsOf(t, b), model.NotificationTypeFollow))

	between, err := env.relationships.HasBlockBetween(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, between, "block is visible from both sides")

	_, err = env.relationships.Follow(ctx, b, a)
	assert.ErrorIs(t, err, model.ErrBlocked)
}

func TestRelationship_BlockSucceedsWhenCleanupFails(t *testing.T) {
	faulty := memstore.WithFaults(memstore.New(), func(op string, key store.Key) error {
		if op == "delete" {
			return errors.New("delete path down")
		}
		return nil
	})
	env := newTestEnvWithStore(t, faulty)
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, a, b)

	ack, err := env.relationships.Block(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, model.StateBlocked, ack.State)

	blocked, err := env.relationships.IsBlocked(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestRelationship_ListBlockedLatestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")

	_, err := env.relationships.Block(ctx, a, b)
	require.NoError(t, err)
	_, err = env.relationships.Block(ctx, a, c)
	require.NoError(t, err)

	list, err := env.relationships.ListBlocked(ctx, a)
	require.NoError(t, err)
	require.Len(t, list.Users, 2)
	assert.ElementsMatch(t, []string{b, c}, []string{list.Users[0].ID, list.Users[1].ID})
}

func TestRelationship_RemoveAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	env.follow(t, a, b)
	env.follow(t, c, a)
	_, err := env.relationships.Block(ctx, b, a)
	require.NoError(t, err)

	for _, o := range env.relationships.RemoveAll(ctx, a) {
		assert.True(t, o.OK(), o.Step)
	}

	n, err := env.relationships.CountFollowers(ctx, a)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = env.relationships.CountFollowing(ctx, a)
	require.NoError(t, err)
	assert.Zero(t, n)
	between, err := env.relationships.HasBlockBetween(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, between)
}
