package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
	"scoop_backend/internal/store"
	"scoop_backend/internal/store/memstore"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeClassifier struct {
	classifyFn func(ctx context.Context, text, imageURL string) (ModerationVerdict, error)
	calls      int
	mu         sync.Mutex
}

func (f *fakeClassifier) Classify(ctx context.Context, text, imageURL string) (ModerationVerdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.classifyFn != nil {
		return f.classifyFn(ctx, text, imageURL)
	}
	return ModerationVerdict{Safe: true}, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []*model.Notification
	msgs []PushMessage
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n *model.Notification, msg PushMessage) model.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	d.msgs = append(d.msgs, msg)
	return model.Done("push_dispatch")
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeObjectStore struct {
	presignFn func(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, error)
	deleteFn  func(ctx context.Context, key string) error

	mu      sync.Mutex
	deleted []string
}

func (f *fakeObjectStore) PresignPut(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, error) {
	if f.presignFn != nil {
		return f.presignFn(ctx, key, contentType, size, expires)
	}
	return "https://upload.example/" + key, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, key)
	f.mu.Unlock()
	if f.deleteFn != nil {
		return f.deleteFn(ctx, key)
	}
	return nil
}

func (f *fakeObjectStore) PublicURL(key string) string { return "https://cdn.example/" + key }

type fakeCredentialDeleter struct {
	deleteFn func(ctx context.Context, userID string) error
	deleted  []string
}

func (f *fakeCredentialDeleter) DeleteUser(ctx context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, userID)
	}
	return nil
}

// =============================================================================
// TEST ENVIRONMENT
// =============================================================================

// testEnv wires every service over one in-memory store, the same way the
// server does.
type testEnv struct {
	store      store.Store
	classifier *fakeClassifier
	dispatcher *recordingDispatcher
	objects    *fakeObjectStore
	creds      *fakeCredentialDeleter

	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	notifRepo   repository.NotificationRepository
	reactRepo   repository.ReactionRepository
	tokenRepo   repository.DeviceTokenRepository
	scoopRepo   repository.ScoopRepository

	users         *UserService
	notifications *NotificationService
	relationships *RelationshipService
	visibility    *VisibilityService
	moderation    *ModerationService
	feed          *FeedService
	posts         *PostService
	comments      *CommentService
	reactions     *ReactionService
	profiles      *ProfileService
	scoops        *ScoopService
	reports       *ReportService
	invites       *InviteService
	media         *MediaService
	push          *PushService
	accounts      *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memstore.New())
}

func newTestEnvWithStore(t *testing.T, s store.Store) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &testEnv{
		store:      s,
		classifier: &fakeClassifier{},
		dispatcher: &recordingDispatcher{},
		objects:    &fakeObjectStore{},
		creds:      &fakeCredentialDeleter{},
	}

	userRepo := repository.NewUserRepository(s)
	handleRepo := repository.NewHandleRepository(s)
	env.postRepo = repository.NewPostRepository(s)
	env.commentRepo = repository.NewCommentRepository(s)
	env.notifRepo = repository.NewNotificationRepository(s)
	env.reactRepo = repository.NewReactionRepository(s)
	env.tokenRepo = repository.NewDeviceTokenRepository(s)
	env.scoopRepo = repository.NewScoopRepository(s)

	env.users = NewUserService(userRepo, handleRepo, nil, logger)
	env.notifications = NewNotificationService(env.notifRepo, userRepo, env.users, env.dispatcher, logger)
	env.relationships = NewRelationshipService(repository.NewFollowRepository(s), repository.NewBlockRepository(s), env.users, env.notifications, logger)
	env.visibility = NewVisibilityService(env.relationships, env.users, env.commentRepo)
	env.moderation = NewModerationService(env.classifier, env.objects, nil, logger)
	env.feed = NewFeedService(env.postRepo, env.commentRepo, env.relationships, env.users, env.visibility, 4, nil, logger)
	env.posts = NewPostService(env.postRepo, env.commentRepo, env.users, env.visibility, env.moderation, env.notifications, env.feed, env.objects, logger)
	env.comments = NewCommentService(env.commentRepo, env.postRepo, env.users, env.relationships, env.visibility, env.moderation, env.notifications, logger)
	env.reactions = NewReactionService(env.reactRepo, env.postRepo, env.visibility, env.notifications, logger)
	env.profiles = NewProfileService(env.users, handleRepo, env.relationships, env.visibility, logger)
	env.scoops = NewScoopService(env.scoopRepo, env.relationships, env.users, env.visibility, env.objects, 4, logger)
	env.reports = NewReportService(repository.NewReportRepository(s), logger)
	env.invites = NewInviteService(repository.NewInviteRepository(s), env.users, logger)
	env.media = NewMediaService(env.objects, logger)
	env.push = NewPushService(env.tokenRepo, nil, nil, nil, logger)
	env.accounts = NewAccountService(AccountDeps{
		Users:         env.users,
		Posts:         env.posts,
		Comments:      env.comments,
		Reactions:     env.reactions,
		Relationships: env.relationships,
		Notifications: env.notifications,
		Invites:       env.invites,
		Push:          env.push,
		Scoops:        env.scoops,
		Objects:       env.objects,
		Credentials:   env.creds,
	}, logger)
	return env
}

// user creates a user with a claimed handle and returns its id (the id is the handle prefixed with "uid-").
func (e *testEnv) user(t *testing.T, handle string) string {
	t.Helper()
	id := "uid-" + handle
	_, err := e.users.ClaimHandle(context.Background(), id, handle)
	require.NoError(t, err)
	return id
}

// follow makes a follow b directly.
func (e *testEnv) follow(t *testing.T, a, b string) {
	t.Helper()
	_, err := e.relationships.Follow(context.Background(), a, b)
	require.NoError(t, err)
}

// postAt writes a post with an explicit timestamp, bypassing moderation.
func (e *testEnv) postAt(t *testing.T, authorID, text string, at time.Time) *model.Post {
	t.Helper()
	p := &model.Post{ID: "p-" + authorID + "-" + at.Format("150405.000"), UserID: authorID, Text: text, CreatedAt: at.UTC()}
	require.NoError(t, e.postRepo.Create(context.Background(), p))
	return p
}

func (e *testEnv) notificationsOf(t *testing.T, userID string) []model.Notification {
	t.Helper()
	list, err := e.notifRepo.List(context.Background(), userID, 0)
	require.NoError(t, err)
	return list
}

func countType(list []model.Notification, typ string) int {
	n := 0
	for _, item := range list {
		if item.Type == typ {
			n++
		}
	}
	return n
}

func itemIDs(items []model.FeedItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
