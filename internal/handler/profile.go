package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/service"
)

// ProfileHandler serves other users' profiles by handle, and search.
type ProfileHandler struct {
	profiles *service.ProfileService
	feed     *service.FeedService
	logger   *zap.Logger
}

func NewProfileHandler(profiles *service.ProfileService, feed *service.FeedService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, feed: feed, logger: logger.Named("profile_handler")}
}

// GetProfile handles GET /u/{handle}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	handle, ok := pathID(w, r, "handle")
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), viewerID, handle)
	if err != nil {
		writeError(h.logger, w, r, "get profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Followers handles GET /u/{handle}/followers
func (h *ProfileHandler) Followers(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	handle, ok := pathID(w, r, "handle")
	if !ok {
		return
	}

	list, err := h.profiles.Followers(r.Context(), viewerID, handle)
	if err != nil {
		writeError(h.logger, w, r, "list followers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// Following handles GET /u/{handle}/following
func (h *ProfileHandler) Following(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	handle, ok := pathID(w, r, "handle")
	if !ok {
		return
	}

	list, err := h.profiles.Following(r.Context(), viewerID, handle)
	if err != nil {
		writeError(h.logger, w, r, "list following", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// Posts handles GET /u/{handle}/posts?limit=&offset=
func (h *ProfileHandler) Posts(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	handle, ok := pathID(w, r, "handle")
	if !ok {
		return
	}
	q, err := feedQuery(r)
	if err != nil {
		writeError(h.logger, w, r, "list user posts", err)
		return
	}

	ownerID, err := h.profiles.OwnerID(r.Context(), handle)
	if err != nil {
		writeError(h.logger, w, r, "list user posts", err)
		return
	}
	posts, err := h.feed.GetUserPosts(r.Context(), viewerID, ownerID, q)
	if err != nil {
		writeError(h.logger, w, r, "list user posts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Search handles GET /users/search?q=&limit=
func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit", service.DefaultSearchLimit)
	if err != nil {
		writeError(h.logger, w, r, "search users", err)
		return
	}

	users, err := h.profiles.Search(r.Context(), viewerID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(h.logger, w, r, "search users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}
