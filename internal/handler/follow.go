package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

// relationshipOp is a relationship transition from the caller to a target.
type relationshipOp func(ctx context.Context, actorID, targetID string) (model.AckResponse, error)

// FollowHandler serves the follow, follow-request and block endpoints. Each
// takes {"userId"} or {"handle"} naming the other party.
type FollowHandler struct {
	relationships *service.RelationshipService
	users         *service.UserService
	logger        *zap.Logger
}

func NewFollowHandler(relationships *service.RelationshipService, users *service.UserService, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{
		relationships: relationships,
		users:         users,
		logger:        logger.Named("follow_handler"),
	}
}

// POST /follow
func (h *FollowHandler) Follow() http.HandlerFunc {
	return h.relationship("follow", h.relationships.Follow)
}

// POST /unfollow
func (h *FollowHandler) Unfollow() http.HandlerFunc {
	return h.relationship("unfollow", h.relationships.Unfollow)
}

// POST /follow-request
func (h *FollowHandler) RequestFollow() http.HandlerFunc {
	return h.relationship("follow request", h.relationships.RequestFollow)
}

// POST /follow-cancel
func (h *FollowHandler) CancelRequest() http.HandlerFunc {
	return h.relationship("cancel follow request", h.relationships.CancelRequest)
}

// POST /follow-accept. The target is the requester.
func (h *FollowHandler) AcceptRequest() http.HandlerFunc {
	return h.relationship("accept follow request", h.relationships.AcceptRequest)
}

// POST /follow-decline. The target is the requester.
func (h *FollowHandler) DeclineRequest() http.HandlerFunc {
	return h.relationship("decline follow request", h.relationships.DeclineRequest)
}

// POST /block
func (h *FollowHandler) Block() http.HandlerFunc {
	return h.relationship("block", h.relationships.Block)
}

// POST /unblock
func (h *FollowHandler) Unblock() http.HandlerFunc {
	return h.relationship("unblock", h.relationships.Unblock)
}

func (h *FollowHandler) relationship(op string, fn relationshipOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req model.TargetRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			writeError(h.logger, w, r, op, err)
			return
		}
		targetID, err := h.users.ResolveTarget(r.Context(), req)
		if err != nil {
			writeError(h.logger, w, r, op, err)
			return
		}

		ack, err := fn(r.Context(), userID, targetID)
		if err != nil {
			writeError(h.logger, w, r, op, err)
			return
		}
		writeAck(w, ack)
	}
}

// ListBlocked handles GET /blocked
func (h *FollowHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.relationships.ListBlocked(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, r, "list blocked", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}
