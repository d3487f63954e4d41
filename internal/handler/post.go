package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

type PostHandler struct {
	postService *service.PostService
	logger      *zap.Logger
}

func NewPostHandler(postService *service.PostService, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		logger:      logger.Named("post_handler"),
	}
}

// Create handles POST /posts
// A moderation rejection is a 403 carrying the classifier's reason.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.CreatePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "create post", err)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, req)
	if err != nil {
		writeError(h.logger, w, r, "create post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	post, err := h.postService.GetByID(r.Context(), userID, postID)
	if err != nil {
		writeError(h.logger, w, r, "get post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Update handles PATCH /posts/{id}
// Author only; the new content is moderated again.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdatePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "update post", err)
		return
	}

	post, err := h.postService.Update(r.Context(), userID, postID, req)
	if err != nil {
		writeError(h.logger, w, r, "update post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}
// Removes the post with its comments, reactions and derived notifications.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.postService.Delete(r.Context(), userID, postID); err != nil {
		writeError(h.logger, w, r, "delete post", err)
		return
	}
	writeAck(w, model.AckResponse{OK: true})
}
