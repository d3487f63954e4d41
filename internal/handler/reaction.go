package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

type ReactionHandler struct {
	reactions *service.ReactionService
	logger    *zap.Logger
}

func NewReactionHandler(reactions *service.ReactionService, logger *zap.Logger) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, logger: logger.Named("reaction_handler")}
}

// Toggle handles POST /posts/{id}/reactions {emoji}
// Same emoji again removes the reaction; a different one replaces it.
func (h *ReactionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.ReactionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "toggle reaction", err)
		return
	}

	res, err := h.reactions.Toggle(r.Context(), userID, postID, req.Emoji)
	if err != nil {
		writeError(h.logger, w, r, "toggle reaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Summary handles GET /posts/{id}/reactions
func (h *ReactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.reactions.Summary(r.Context(), userID, postID)
	if err != nil {
		writeError(h.logger, w, r, "reaction summary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
