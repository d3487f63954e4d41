package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoop_backend/internal/model"
)

func TestComment_RequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "ping @carol"})
	require.NoError(t, err)

	_, err = env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "hi"})
	assert.ErrorIs(t, err, model.ErrCommentNotAllowed)

	_, err = env.comments.Create(ctx, c, p.ID, model.CreateCommentRequest{Text: "mentioned, so allowed"})
	assert.NoError(t, err)

	env.follow(t, b, a)
	_, err = env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "follower, so allowed"})
	require.NoError(t, err)

	// a lapsed follow keeps the thread open
	_, err = env.relationships.Unfollow(ctx, b, a)
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "still here"})
	assert.NoError(t, err)

	_, err = env.relationships.Block(ctx, a, b)
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "blocked now"})
	assert.ErrorIs(t, err, model.ErrCommentNotAllowed)
}

func TestComment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "alice")
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "post"})
	require.NoError(t, err)

	_, err = env.comments.Create(ctx, a, p.ID, model.CreateCommentRequest{Text: "  "})
	assert.ErrorIs(t, err, model.ErrCommentRequired)

	_, err = env.comments.Create(ctx, a, p.ID, model.CreateCommentRequest{Text: strings.Repeat("y", model.MaxCommentLength+1)})
	assert.ErrorIs(t, err, model.ErrCommentTooLong)

	_, err = env.comments.Create(ctx, a, "missing", model.CreateCommentRequest{Text: "x"})
	assert.ErrorIs(t, err, model.ErrPostNotFound)

	other, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "other"})
	require.NoError(t, err)
	foreign, err := env.comments.Create(ctx, a, other.ID, model.CreateCommentRequest{Text: "elsewhere"})
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, a, p.ID, model.CreateCommentRequest{Text: "reply", ParentCommentID: foreign.ID})
	assert.ErrorIs(t, err, model.ErrParentMismatch)
}

func TestComment_NotifiesEachUserOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, b, a)
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "post"})
	require.NoError(t, err)

	// post author is also mentioned: one comment notification only
	_, err = env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "nice @alice"})
	require.NoError(t, err)

	list := env.notificationsOf(t, a)
	assert.Equal(t, 1, countType(list, model.NotificationTypeComment))
	assert.Zero(t, countType(list, model.NotificationTypeMention))
	for _, n := range list {
		if n.Type == model.NotificationTypeComment {
			assert.Equal(t, p.ID, n.PostID)
		}
	}
}

func TestComment_ReplyToReplyFlattens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	env.follow(t, b, a)
	env.follow(t, c, a)
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "post"})
	require.NoError(t, err)

	root, err := env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "root"})
	require.NoError(t, err)
	reply, err := env.comments.Create(ctx, c, p.ID, model.CreateCommentRequest{Text: "first reply", ParentCommentID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, reply.ParentCommentID)

	nested, err := env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "answer", ParentCommentID: reply.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, nested.ParentCommentID, "nesting stops at one level")
	assert.Equal(t, "@carol answer", nested.Text)

	assert.Equal(t, 1, countType(env.notificationsOf(t, b), model.NotificationTypeReply))
	carol := env.notificationsOf(t, c)
	assert.Equal(t, 1, countType(carol, model.NotificationTypeReply))
	assert.Zero(t, countType(carol, model.NotificationTypeMention), "reply already covers the prefix mention")
}

func TestComment_DeleteCascadesRepliesAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c, d := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol"), env.user(t, "dave")
	env.follow(t, b, a)
	env.follow(t, c, a)
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "post"})
	require.NoError(t, err)

	root, err := env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "root"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = env.comments.Create(ctx, c, p.ID, model.CreateCommentRequest{Text: "reply for @dave", ParentCommentID: root.ID})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	other, err := env.comments.Create(ctx, c, p.ID, model.CreateCommentRequest{Text: "unrelated"})
	require.NoError(t, err)

	require.NotEmpty(t, env.notificationsOf(t, d))

	assert.ErrorIs(t, env.comments.Delete(ctx, d, root.ID), model.ErrNotCommentOwner)
	require.NoError(t, env.comments.Delete(ctx, b, root.ID))

	left, err := env.commentRepo.ListByPost(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].ID)

	assert.Empty(t, env.notificationsOf(t, b), "reply notification removed")
	assert.Empty(t, env.notificationsOf(t, d), "mention in reply removed")
	var commentIDs []string
	for _, n := range env.notificationsOf(t, a) {
		if n.Type == model.NotificationTypeComment {
			commentIDs = append(commentIDs, n.ContentID)
		}
	}
	assert.Equal(t, []string{other.ID}, commentIDs)
}

func TestComment_PostOwnerCanDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.user(t, "alice"), env.user(t, "bob")
	env.follow(t, b, a)
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "post"})
	require.NoError(t, err)
	cm, err := env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "rude"})
	require.NoError(t, err)

	require.NoError(t, env.comments.Delete(ctx, a, cm.ID))
	_, err = env.commentRepo.Get(ctx, cm.ID)
	assert.ErrorIs(t, err, model.ErrCommentNotFound)
}

func TestComment_ListHidesBlockedCommenters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b, c := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	env.follow(t, b, a)
	env.follow(t, c, a)
	p, err := env.posts.Create(ctx, a, model.CreatePostRequest{Text: "post"})
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, b, p.ID, model.CreateCommentRequest{Text: "from bob"})
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, c, p.ID, model.CreateCommentRequest{Text: "from carol"})
	require.NoError(t, err)

	_, err = env.relationships.Block(ctx, c, b)
	require.NoError(t, err)

	list, err := env.comments.List(ctx, c, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "from carol", list.Comments[0].Text)

	_, err = env.comments.List(ctx, env.user(t, "dave"), p.ID)
	assert.ErrorIs(t, err, model.ErrProfilePrivate)
}
