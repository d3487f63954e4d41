package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
	logger         *zap.Logger
}

func NewCommentHandler(commentService *service.CommentService, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		logger:         logger.Named("comment_handler"),
	}
}

// List handles GET /posts/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	comments, err := h.commentService.List(r.Context(), userID, postID)
	if err != nil {
		writeError(h.logger, w, r, "list comments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, comments)
}

// Create handles POST /posts/{id}/comments
// A reply to a reply attaches to the top-level comment.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.CreateCommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "create comment", err)
		return
	}

	comment, err := h.commentService.Create(r.Context(), userID, postID, req)
	if err != nil {
		writeError(h.logger, w, r, "create comment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /comments/{id}
// The comment author or the post author may delete.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.commentService.Delete(r.Context(), userID, commentID); err != nil {
		writeError(h.logger, w, r, "delete comment", err)
		return
	}
	writeAck(w, model.AckResponse{OK: true})
}
