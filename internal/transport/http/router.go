package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"scoop_backend/internal/handler"
	"scoop_backend/internal/httputil"
	"scoop_backend/internal/identity"
	authmw "scoop_backend/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	UserHandler         *handler.UserHandler
	ProfileHandler      *handler.ProfileHandler
	FollowHandler       *handler.FollowHandler
	FeedHandler         *handler.FeedHandler
	PostHandler         *handler.PostHandler
	CommentHandler      *handler.CommentHandler
	ReactionHandler     *handler.ReactionHandler
	NotificationHandler *handler.NotificationHandler
	ScoopHandler        *handler.ScoopHandler
	InviteHandler       *handler.InviteHandler
	MediaHandler        *handler.MediaHandler

	Verifier       identity.Verifier
	MetricsHandler http.Handler // nil disables /metrics
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// Everything else requires authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.Verifier))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.Me)
			r.Patch("/", cfg.UserHandler.UpdateMe)
			r.Delete("/", cfg.UserHandler.DeleteMe)
			r.Put("/handle", cfg.UserHandler.ClaimHandle)
			r.Post("/push-tokens", cfg.UserHandler.RegisterPushToken)
			r.Delete("/push-tokens", cfg.UserHandler.RemovePushToken)
		})

		r.Get("/feed", cfg.FeedHandler.GetFeed)

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", cfg.PostHandler.Create)
			r.Get("/{id}", cfg.PostHandler.GetByID)
			r.Patch("/{id}", cfg.PostHandler.Update)
			r.Delete("/{id}", cfg.PostHandler.Delete)

			r.Get("/{id}/comments", cfg.CommentHandler.List)
			r.Post("/{id}/comments", cfg.CommentHandler.Create)

			r.Get("/{id}/reactions", cfg.ReactionHandler.Summary)
			r.Post("/{id}/reactions", cfg.ReactionHandler.Toggle)
		})
		r.Delete("/comments/{id}", cfg.CommentHandler.Delete)

		// Relationship actions take {"userId"} or {"handle"} in the body
		r.Post("/follow", cfg.FollowHandler.Follow())
		r.Post("/unfollow", cfg.FollowHandler.Unfollow())
		r.Post("/follow-request", cfg.FollowHandler.RequestFollow())
		r.Post("/follow-accept", cfg.FollowHandler.AcceptRequest())
		r.Post("/follow-decline", cfg.FollowHandler.DeclineRequest())
		r.Post("/follow-cancel", cfg.FollowHandler.CancelRequest())
		r.Post("/block", cfg.FollowHandler.Block())
		r.Post("/unblock", cfg.FollowHandler.Unblock())
		r.Get("/blocked", cfg.FollowHandler.ListBlocked)

		r.Route("/u/{handle}", func(r chi.Router) {
			r.Get("/", cfg.ProfileHandler.GetProfile)
			r.Get("/followers", cfg.ProfileHandler.Followers)
			r.Get("/following", cfg.ProfileHandler.Following)
			r.Get("/posts", cfg.ProfileHandler.Posts)
		})
		r.Get("/users/search", cfg.ProfileHandler.Search)

		r.Get("/notifications", cfg.NotificationHandler.List)

		r.Route("/scoops", func(r chi.Router) {
			r.Get("/", cfg.ScoopHandler.Feed)
			r.Post("/", cfg.ScoopHandler.Create)
			r.Post("/{id}/view", cfg.ScoopHandler.View)
			r.Get("/{id}/viewers", cfg.ScoopHandler.Viewers)
			r.Delete("/{id}", cfg.ScoopHandler.Delete)
		})

		r.Post("/reports", cfg.InviteHandler.Report)
		r.Route("/invites", func(r chi.Router) {
			r.Get("/", cfg.InviteHandler.List)
			r.Post("/", cfg.InviteHandler.Create)
			r.Post("/redeem", cfg.InviteHandler.Redeem)
		})

		r.Post("/media/presign", cfg.MediaHandler.Presign)
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
