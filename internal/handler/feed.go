package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

type FeedHandler struct {
	feedService *service.FeedService
	logger      *zap.Logger
}

func NewFeedHandler(feedService *service.FeedService, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		logger:      logger.Named("feed_handler"),
	}
}

// GetFeed handles GET /feed
// Returns the merged, paginated feed for the authenticated user.
//
// Query params:
//   - limit: optional, posts per page (default 20, max 100)
//   - offset: optional, items to skip
//   - scope: optional, "global" forces the recency-ordered global listing
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q, err := feedQuery(r)
	if err != nil {
		writeError(h.logger, w, r, "get feed", err)
		return
	}
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "following":
	case service.FeedScopeGlobal:
		q.Scope = service.FeedScopeGlobal
	default:
		writeError(h.logger, w, r, "get feed", model.Validationf("invalid scope %q", scope))
		return
	}

	feed, err := h.feedService.GetFeed(r.Context(), userID, q)
	if err != nil {
		writeError(h.logger, w, r, "get feed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}

func feedQuery(r *http.Request) (service.FeedQuery, error) {
	limit, err := httputil.QueryInt(r, "limit", service.FeedDefaultLimit)
	if err != nil {
		return service.FeedQuery{}, err
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil {
		return service.FeedQuery{}, err
	}
	return service.FeedQuery{Limit: limit, Offset: offset}, nil
}
