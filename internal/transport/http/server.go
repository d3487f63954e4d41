package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"go.uber.org/zap"

	"scoop_backend/internal/cache"
	"scoop_backend/internal/config"
	"scoop_backend/internal/database"
	"scoop_backend/internal/handler"
	"scoop_backend/internal/identity"
	"scoop_backend/internal/metrics"
	"scoop_backend/internal/queue"
	redisclient "scoop_backend/internal/redis"
	"scoop_backend/internal/repository"
	"scoop_backend/internal/service"
	"scoop_backend/internal/store"
	"scoop_backend/internal/store/dynamo"
	"scoop_backend/internal/store/memstore"
	"scoop_backend/internal/store/postgres"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App is the wired application shared by the serve, worker and purge-scoops commands.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Users         *service.UserService
	Notifications *service.NotificationService
	Relationships *service.RelationshipService
	Visibility    *service.VisibilityService
	Moderation    *service.ModerationService
	Feed          *service.FeedService
	Posts         *service.PostService
	Comments      *service.CommentService
	Reactions     *service.ReactionService
	Profiles      *service.ProfileService
	Scoops        *service.ScoopService
	Reports       *service.ReportService
	Invites       *service.InviteService
	Media         *service.MediaService
	Push          *service.PushService
	Accounts      *service.AccountService

	Verifier identity.Verifier
	Redis    *redisclient.Client // nil when REDIS_URL is unset or unreachable

	closers []func() error
}

// stores holds one store per logical table. Scoops and Reports are nil when
// their table is not configured.
type stores struct {
	Main    store.Store
	Scoops  store.Store
	Reports store.Store
}

// NewApp connects every backend named in cfg and wires the services.
// Optional collaborators (Redis, R2, Firebase, OpenAI) are skipped with a
// warning when unconfigured.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	st, err := app.openStores(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	// Redis: summary cache + push queue
	var summaries cache.SummaryCache
	if cfg.RedisURL != "" {
		rc, err := redisclient.NewClient(cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, running without cache and push queue", zap.Error(err))
			_ = rc.Close()
		} else {
			app.Redis = rc
			app.closers = append(app.closers, rc.Close)
			summaries = cache.NewSummaryCache(rc.Client, cfg.SummaryCacheTTL, logger)
		}
	}

	// Object storage
	var objects service.ObjectStore
	var imageURLs service.ImageURLResolver
	if cfg.MediaEnabled() {
		r2, err := service.NewR2ObjectStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		objects, imageURLs = r2, r2
	} else {
		logger.Warn("R2 not configured, media uploads disabled")
	}

	// Identity: Firebase ID tokens when configured, HS256 JWTs otherwise
	var credentials service.CredentialDeleter
	var fcm service.PushSender
	if cfg.FirebaseCredentialsFile != "" {
		fb, err := identity.NewFirebaseApp(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Verifier = identity.NewFirebaseVerifier(fb.Auth)
		credentials = identity.NewFirebaseCredentialDeleter(fb.Auth)
		if mc, err := fb.Messaging(ctx); err != nil {
			logger.Warn("FCM unavailable, native push disabled", zap.Error(err))
		} else {
			fcm = service.NewFCMClient(mc, logger)
		}
	} else {
		if cfg.JWTSecret == "" {
			app.Close()
			return nil, errors.New("either FIREBASE_CREDENTIALS_FILE or JWT_SECRET must be set")
		}
		app.Verifier = identity.NewJWTVerifier(cfg.JWTSecret)
		logger.Warn("firebase not configured, using JWT verifier; credential deletion disabled")
	}

	var classifier service.Classifier
	if cfg.OpenAIAPIKey != "" {
		classifier = service.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, moderation disabled")
	}

	app.wire(st, summaries, objects, imageURLs, credentials, classifier, fcm)
	return app, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	cfg, logger := a.Config, a.Logger
	var st stores

	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return st, err
		}
		st.Main = dynamo.New(client, cfg.DynamoTable, logger)
		if cfg.ScoopsEnabled() {
			st.Scoops = dynamo.New(client, cfg.ScoopsTable, logger)
		}
		if cfg.ReportsEnabled() {
			st.Reports = dynamo.New(client, cfg.ReportsTable, logger)
		}

	case config.BackendPostgres:
		db, err := database.Connect(cfg, logger)
		if err != nil {
			return st, err
		}
		a.closers = append(a.closers, db.Close)
		if err := database.Migrate(ctx, db); err != nil {
			return st, err
		}
		st.Main = postgres.New(db, cfg.DynamoTable)
		if cfg.ScoopsEnabled() {
			st.Scoops = postgres.New(db, cfg.ScoopsTable)
		}
		if cfg.ReportsEnabled() {
			st.Reports = postgres.New(db, cfg.ReportsTable)
		}

	case config.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		st.Main = memstore.New()
		if cfg.ScoopsEnabled() {
			st.Scoops = memstore.New()
		}
		if cfg.ReportsEnabled() {
			st.Reports = memstore.New()
		}

	default:
		return st, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	opts := store.Options{
		Timeout:  cfg.StoreTimeout,
		Attempts: cfg.StoreAttempts,
		Backoff:  50 * time.Millisecond,
		Metrics:  a.Metrics,
	}
	st.Main = store.WithResilience(st.Main, opts)
	if st.Scoops != nil {
		st.Scoops = store.WithResilience(st.Scoops, opts)
	}
	if st.Reports != nil {
		st.Reports = store.WithResilience(st.Reports, opts)
	}
	return st, nil
}

func (a *App) wire(
	st stores,
	summaries cache.SummaryCache,
	objects service.ObjectStore,
	imageURLs service.ImageURLResolver,
	credentials service.CredentialDeleter,
	classifier service.Classifier,
	fcm service.PushSender,
) {
	cfg, logger := a.Config, a.Logger
	s := st.Main

	userRepo := repository.NewUserRepository(s)
	handleRepo := repository.NewHandleRepository(s)
	postRepo := repository.NewPostRepository(s)
	commentRepo := repository.NewCommentRepository(s)

	var scoopRepo repository.ScoopRepository
	if st.Scoops != nil {
		scoopRepo = repository.NewScoopRepository(st.Scoops)
	}
	var reportRepo repository.ReportRepository
	if st.Reports != nil {
		reportRepo = repository.NewReportRepository(st.Reports)
	}

	a.Push = service.NewPushService(repository.NewDeviceTokenRepository(s), service.NewExpoPushClient(logger), fcm, a.Metrics, logger)

	// Push goes through the Redis stream when there is one, so delivery
	// survives the request and is retried from the pending list on restart.
	var dispatcher service.PushDispatcher
	if a.Redis != nil {
		dispatcher = service.NewQueueDispatcher(queue.NewPublisher(a.Redis.Client, logger))
	} else {
		dispatcher = service.NewDirectDispatcher(a.Push, logger)
	}

	a.Users = service.NewUserService(userRepo, handleRepo, summaries, logger)
	a.Notifications = service.NewNotificationService(repository.NewNotificationRepository(s), userRepo, a.Users, dispatcher, logger)
	a.Relationships = service.NewRelationshipService(repository.NewFollowRepository(s), repository.NewBlockRepository(s), a.Users, a.Notifications, logger)
	a.Visibility = service.NewVisibilityService(a.Relationships, a.Users, commentRepo)
	a.Moderation = service.NewModerationService(classifier, imageURLs, a.Metrics, logger)
	a.Feed = service.NewFeedService(postRepo, commentRepo, a.Relationships, a.Users, a.Visibility, cfg.FanoutConcurrency, a.Metrics, logger)
	a.Posts = service.NewPostService(postRepo, commentRepo, a.Users, a.Visibility, a.Moderation, a.Notifications, a.Feed, objects, logger)
	a.Comments = service.NewCommentService(commentRepo, postRepo, a.Users, a.Relationships, a.Visibility, a.Moderation, a.Notifications, logger)
	a.Reactions = service.NewReactionService(repository.NewReactionRepository(s), postRepo, a.Visibility, a.Notifications, logger)
	a.Profiles = service.NewProfileService(a.Users, handleRepo, a.Relationships, a.Visibility, logger)
	a.Scoops = service.NewScoopService(scoopRepo, a.Relationships, a.Users, a.Visibility, objects, cfg.FanoutConcurrency, logger)
	a.Reports = service.NewReportService(reportRepo, logger)
	a.Invites = service.NewInviteService(repository.NewInviteRepository(s), a.Users, logger)
	a.Media = service.NewMediaService(objects, logger)
	a.Accounts = service.NewAccountService(service.AccountDeps{
		Users:         a.Users,
		Posts:         a.Posts,
		Comments:      a.Comments,
		Reactions:     a.Reactions,
		Relationships: a.Relationships,
		Notifications: a.Notifications,
		Invites:       a.Invites,
		Push:          a.Push,
		Scoops:        a.Scoops,
		Objects:       objects,
		Credentials:   credentials,
	}, logger)
}

// Router builds the HTTP routes over the wired services.
func (a *App) Router() stdhttp.Handler {
	logger := a.Logger
	return NewRouter(RouterConfig{
		UserHandler:         handler.NewUserHandler(a.Users, a.Accounts, a.Push, logger),
		ProfileHandler:      handler.NewProfileHandler(a.Profiles, a.Feed, logger),
		FollowHandler:       handler.NewFollowHandler(a.Relationships, a.Users, logger),
		FeedHandler:         handler.NewFeedHandler(a.Feed, logger),
		PostHandler:         handler.NewPostHandler(a.Posts, logger),
		CommentHandler:      handler.NewCommentHandler(a.Comments, logger),
		ReactionHandler:     handler.NewReactionHandler(a.Reactions, logger),
		NotificationHandler: handler.NewNotificationHandler(a.Notifications, logger),
		ScoopHandler:        handler.NewScoopHandler(a.Scoops, logger),
		InviteHandler:       handler.NewInviteHandler(a.Invites, a.Reports, logger),
		MediaHandler:        handler.NewMediaHandler(a.Media, logger),
		Verifier:            a.Verifier,
		MetricsHandler:      a.Metrics.Handler(),
		RequestTimeout:      requestTimeout,
		Logger:              logger,
	})
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	srv := &stdhttp.Server{
		Addr:              ":" + a.Config.ServerPort,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", a.Config.StoreBackend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
