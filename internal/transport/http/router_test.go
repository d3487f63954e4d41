package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scoop_backend/internal/config"
	"scoop_backend/internal/httputil"
	"scoop_backend/internal/identity"
	"scoop_backend/internal/metrics"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
	"scoop_backend/internal/store/memstore"
)

const testSecret = "test-secret"

type classifierFunc func(ctx context.Context, text, imageURL string) (service.ModerationVerdict, error)

func (f classifierFunc) Classify(ctx context.Context, text, imageURL string) (service.ModerationVerdict, error) {
	return f(ctx, text, imageURL)
}

// blockWord rejects any text containing "forbidden".
var blockWord = classifierFunc(func(_ context.Context, text, _ string) (service.ModerationVerdict, error) {
	if strings.Contains(text, "forbidden") {
		return service.ModerationVerdict{Safe: false, Reason: "harassment"}, nil
	}
	return service.ModerationVerdict{Safe: true}, nil
})

type testServer struct {
	handler  stdhttp.Handler
	verifier *identity.JWTVerifier
}

func newTestServer(t *testing.T, withScoops bool) *testServer {
	t.Helper()
	app := &App{
		Config:  &config.Config{FanoutConcurrency: 4},
		Logger:  zap.NewNop(),
		Metrics: metrics.New(),
	}
	verifier := identity.NewJWTVerifier(testSecret)
	app.Verifier = verifier

	st := stores{Main: memstore.New(), Reports: memstore.New()}
	if withScoops {
		st.Scoops = memstore.New()
	}
	app.wire(st, nil, nil, nil, nil, blockWord, nil)
	return &testServer{handler: app.Router(), verifier: verifier}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// signup creates the user and claims handle.
func (s *testServer) signup(t *testing.T, userID, handle string) {
	t.Helper()
	rec := s.do(t, stdhttp.MethodPut, "/me/handle", userID, map[string]string{"handle": handle})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, stdhttp.MethodGet, "/health", "", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	srv.signup(t, "u1", "alice")
	rec = srv.do(t, stdhttp.MethodPost, "/posts", "u1", map[string]string{"text": "hi"})
	require.Equal(t, stdhttp.StatusCreated, rec.Code)

	rec = srv.do(t, stdhttp.MethodGet, "/metrics", "", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scoop_moderation_decisions_total{decision="allowed"} 1`)
}

func TestRouter_Authentication(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, stdhttp.MethodGet, "/me", "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.ErrCodeTokenMissing, decode[httputil.ErrorResponse](t, rec).Code)

	expired, err := srv.verifier.Issue("u1", -time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(stdhttp.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.ErrCodeTokenExpired, decode[httputil.ErrorResponse](t, rec).Code)

	req = httptest.NewRequest(stdhttp.MethodGet, "/me", nil)
	req.AddCookie(&stdhttp.Cookie{Name: "access_token", Value: srv.token(t, "u1")})
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
}

func TestRouter_ProfileLifecycle(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, stdhttp.MethodGet, "/me", "u1", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "u1", decode[model.User](t, rec).ID, "created on first call")

	srv.signup(t, "u1", "Alice")
	rec = srv.do(t, stdhttp.MethodPut, "/me/handle", "u2", map[string]string{"handle": "alice"})
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)

	rec = srv.do(t, stdhttp.MethodPut, "/me/handle", "u2", map[string]string{"handle": "no"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	name := "Alice A."
	rec = srv.do(t, stdhttp.MethodPatch, "/me", "u1", model.UpdateProfileRequest{DisplayName: &name})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, name, decode[model.User](t, rec).DisplayName)

	rec = srv.do(t, stdhttp.MethodPost, "/me/push-tokens", "u1", map[string]string{"token": "ExponentPushToken[x]"})
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = srv.do(t, stdhttp.MethodDelete, "/me/push-tokens", "u1", map[string]string{})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = srv.do(t, stdhttp.MethodDelete, "/me", "u1", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	resp := decode[model.AccountDeletionResponse](t, rec)
	assert.Equal(t, "u1", resp.UserID)
	assert.NotEmpty(t, resp.Steps)

	rec = srv.do(t, stdhttp.MethodGet, "/u/alice", "u2", nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestRouter_MentionCreatesNotification(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")
	srv.signup(t, "ub", "bob")

	rec := srv.do(t, stdhttp.MethodGet, "/notifications", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Empty(t, decode[model.NotificationListResponse](t, rec).Notifications)

	rec = srv.do(t, stdhttp.MethodPost, "/posts", "ua", map[string]string{"text": "hello @bob"})
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	post := decode[model.FeedItem](t, rec)

	rec = srv.do(t, stdhttp.MethodGet, "/notifications?markRead=1", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	list := decode[model.NotificationListResponse](t, rec)
	require.Len(t, list.Notifications, 1)
	n := list.Notifications[0]
	assert.Equal(t, model.NotificationTypeMention, n.Type)
	assert.Equal(t, "ua", n.SourceID)
	assert.Equal(t, post.ID, n.ContentID)
	assert.Equal(t, 1, list.UnreadCount)

	rec = srv.do(t, stdhttp.MethodGet, "/notifications", "ub", nil)
	assert.Zero(t, decode[model.NotificationListResponse](t, rec).UnreadCount)
}

func TestRouter_FollowFeedAndVisibility(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")
	srv.signup(t, "ub", "bob")
	srv.signup(t, "uc", "carol")

	rec := srv.do(t, stdhttp.MethodPost, "/posts", "ua", map[string]string{"text": "first"})
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	post := decode[model.FeedItem](t, rec)

	// carol is a stranger
	rec = srv.do(t, stdhttp.MethodGet, "/u/alice", "uc", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.False(t, decode[model.ProfileResponse](t, rec).CanView)
	rec = srv.do(t, stdhttp.MethodGet, "/u/alice/followers", "uc", nil)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	rec = srv.do(t, stdhttp.MethodGet, "/posts/"+post.ID, "uc", nil)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)

	rec = srv.do(t, stdhttp.MethodPost, "/follow", "ub", map[string]string{"handle": "alice"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[model.AckResponse](t, rec).OK)

	rec = srv.do(t, stdhttp.MethodGet, "/feed", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	feed := decode[model.FeedResponse](t, rec)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, post.ID, feed.Items[0].ID)
	assert.Equal(t, "alice", feed.Items[0].Handle)

	rec = srv.do(t, stdhttp.MethodGet, "/u/alice/posts?limit=5", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Len(t, decode[model.FeedResponse](t, rec).Items, 1)

	rec = srv.do(t, stdhttp.MethodGet, "/feed?scope=bogus", "ub", nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	rec = srv.do(t, stdhttp.MethodGet, "/feed?limit=-1", "ub", nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = srv.do(t, stdhttp.MethodPost, "/follow", "ub", map[string]string{"userId": "ub"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code, "self follow")
	rec = srv.do(t, stdhttp.MethodPost, "/follow", "ub", map[string]string{})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code, "no target")

	// alice blocks bob: the edge goes and bob's feed no longer shows her
	rec = srv.do(t, stdhttp.MethodPost, "/block", "ua", map[string]string{"handle": "bob"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = srv.do(t, stdhttp.MethodGet, "/blocked", "ua", nil)
	assert.Equal(t, 1, decode[model.UserListResponse](t, rec).Count)

	rec = srv.do(t, stdhttp.MethodGet, "/feed", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	for _, item := range decode[model.FeedResponse](t, rec).Items {
		assert.NotEqual(t, "ua", item.UserID)
	}
	rec = srv.do(t, stdhttp.MethodPost, "/follow", "ub", map[string]string{"handle": "alice"})
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
}

func TestRouter_FollowRequestFlow(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")
	srv.signup(t, "ub", "bob")

	rec := srv.do(t, stdhttp.MethodPost, "/follow-request", "ub", map[string]string{"handle": "alice"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = srv.do(t, stdhttp.MethodGet, "/u/alice", "ub", nil)
	assert.True(t, decode[model.ProfileResponse](t, rec).RequestPending)

	rec = srv.do(t, stdhttp.MethodPost, "/follow-accept", "ua", map[string]string{"userId": "ub"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = srv.do(t, stdhttp.MethodGet, "/u/alice/followers", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.UserListResponse](t, rec).Count)

	rec = srv.do(t, stdhttp.MethodPost, "/follow-accept", "ua", map[string]string{"userId": "ub"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, "repeat accept is idempotent")
	assert.Equal(t, model.StateFollowing, decode[model.AckResponse](t, rec).State)

	rec = srv.do(t, stdhttp.MethodPost, "/follow-accept", "ua", map[string]string{"userId": "uc"})
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code, "no edge and nothing pending")

	rec = srv.do(t, stdhttp.MethodPost, "/unfollow", "ub", map[string]string{"handle": "alice"})
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
}

func TestRouter_PostValidationAndModeration(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")

	rec := srv.do(t, stdhttp.MethodPost, "/posts", "ua", nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = srv.do(t, stdhttp.MethodPost, "/posts", "ua", map[string]string{"text": strings.Repeat("x", model.MaxPostTextLength+1)})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = srv.do(t, stdhttp.MethodPost, "/posts", "ua", map[string]string{"text": "this is forbidden"})
	require.Equal(t, stdhttp.StatusForbidden, rec.Code)
	body := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, httputil.ErrCodeModeration, body.Code)
	assert.Equal(t, "harassment", body.Reason)

	rec = srv.do(t, stdhttp.MethodGet, "/u/alice/posts", "ua", nil)
	assert.Empty(t, decode[model.FeedResponse](t, rec).Items, "rejected post is not stored")
}

func TestRouter_CommentsAndReactions(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")
	srv.signup(t, "ub", "bob")

	rec := srv.do(t, stdhttp.MethodPost, "/posts", "ua", map[string]string{"text": "post"})
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	post := decode[model.FeedItem](t, rec)

	rec = srv.do(t, stdhttp.MethodPost, "/posts/"+post.ID+"/comments", "ub", map[string]string{"text": "hi"})
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code, "bob does not follow alice")

	srv.do(t, stdhttp.MethodPost, "/follow", "ub", map[string]string{"handle": "alice"})
	rec = srv.do(t, stdhttp.MethodPost, "/posts/"+post.ID+"/comments", "ub", map[string]string{"text": "hi"})
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[model.CommentPreview](t, rec)

	rec = srv.do(t, stdhttp.MethodGet, "/posts/"+post.ID+"/comments", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.CommentListResponse](t, rec).Count)

	rec = srv.do(t, stdhttp.MethodPost, "/posts/"+post.ID+"/reactions", "ub", map[string]string{"emoji": "🔥"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[model.ReactionToggleResult](t, rec).Summary.Counts["🔥"])

	rec = srv.do(t, stdhttp.MethodPost, "/posts/"+post.ID+"/reactions", "ub", map[string]string{"emoji": "🔥"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = srv.do(t, stdhttp.MethodGet, "/posts/"+post.ID+"/reactions", "ua", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Zero(t, decode[model.ReactionSummary](t, rec).Counts["🔥"])

	rec = srv.do(t, stdhttp.MethodDelete, "/comments/"+comment.ID, "ua", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code, "post owner may delete")

	rec = srv.do(t, stdhttp.MethodDelete, "/posts/"+post.ID, "ub", nil)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	rec = srv.do(t, stdhttp.MethodDelete, "/posts/"+post.ID, "ua", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = srv.do(t, stdhttp.MethodGet, "/posts/"+post.ID, "ua", nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestRouter_SearchInvitesReports(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")
	srv.signup(t, "ub", "alina")

	rec := srv.do(t, stdhttp.MethodGet, "/users/search?q=al", "ua", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	users := decode[model.UserListResponse](t, rec)
	require.Equal(t, 1, users.Count)
	assert.Equal(t, "alina", users.Users[0].Handle)

	rec = srv.do(t, stdhttp.MethodPost, "/invites", "ua", nil)
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	invite := decode[model.Invite](t, rec)

	rec = srv.do(t, stdhttp.MethodPost, "/invites/redeem", "ub", map[string]string{"code": invite.Code})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	rec = srv.do(t, stdhttp.MethodPost, "/invites/redeem", "ub", map[string]string{"code": invite.Code})
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)

	rec = srv.do(t, stdhttp.MethodGet, "/invites", "ua", nil)
	assert.Len(t, decode[model.InviteListResponse](t, rec).Invites, 1)

	report := map[string]string{"contentType": "user", "contentId": "ua", "reason": "spam"}
	rec = srv.do(t, stdhttp.MethodPost, "/reports", "ub", report)
	assert.Equal(t, stdhttp.StatusCreated, rec.Code)
	rec = srv.do(t, stdhttp.MethodPost, "/reports", "ub", report)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	rec = srv.do(t, stdhttp.MethodPost, "/reports", "ub", map[string]string{"contentType": "planet", "contentId": "x", "reason": "r"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestRouter_OptionalSubsystemsAnswerNotImplemented(t *testing.T) {
	srv := newTestServer(t, false)
	srv.signup(t, "ua", "alice")

	rec := srv.do(t, stdhttp.MethodGet, "/scoops", "ua", nil)
	assert.Equal(t, stdhttp.StatusNotImplemented, rec.Code)
	assert.Equal(t, httputil.ErrCodeNotEnabled, decode[httputil.ErrorResponse](t, rec).Code)

	rec = srv.do(t, stdhttp.MethodPost, "/media/presign", "ua", map[string]any{"contentType": "image/png", "purpose": "post"})
	assert.Equal(t, stdhttp.StatusNotImplemented, rec.Code)
}

func TestRouter_Scoops(t *testing.T) {
	srv := newTestServer(t, true)
	srv.signup(t, "ua", "alice")
	srv.signup(t, "ub", "bob")
	srv.do(t, stdhttp.MethodPost, "/follow", "ub", map[string]string{"handle": "alice"})

	rec := srv.do(t, stdhttp.MethodPost, "/scoops", "ua", map[string]string{
		"mediaKey":  service.ScoopKeyPrefix + "ua/1.jpg",
		"mediaType": model.ScoopMediaImage,
	})
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	scoop := decode[model.Scoop](t, rec)

	rec = srv.do(t, stdhttp.MethodGet, "/scoops", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.Len(t, decode[model.ScoopFeedResponse](t, rec).Groups, 1)

	rec = srv.do(t, stdhttp.MethodPost, "/scoops/"+scoop.ID+"/view", "ub", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.True(t, decode[model.ScoopViewResponse](t, rec).Recorded)

	rec = srv.do(t, stdhttp.MethodGet, "/scoops/"+scoop.ID+"/viewers", "ub", nil)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	rec = srv.do(t, stdhttp.MethodGet, "/scoops/"+scoop.ID+"/viewers", "ua", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.UserListResponse](t, rec).Count)

	rec = srv.do(t, stdhttp.MethodDelete, "/scoops/"+scoop.ID, "ua", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
}
