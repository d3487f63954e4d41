package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

// UserHandler serves the caller's own account under /me.
type UserHandler struct {
	users    *service.UserService
	accounts *service.AccountService
	push     *service.PushService
	logger   *zap.Logger
}

func NewUserHandler(users *service.UserService, accounts *service.AccountService, push *service.PushService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		accounts: accounts,
		push:     push,
		logger:   logger.Named("user_handler"),
	}
}

// Me handles GET /me
// The user record is created on the first authenticated call.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetOrCreate(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, r, "get me", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "update me", err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeError(h.logger, w, r, "update me", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// ClaimHandle handles PUT /me/handle
func (h *UserHandler) ClaimHandle(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.ClaimHandleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "claim handle", err)
		return
	}

	user, err := h.users.ClaimHandle(r.Context(), userID, req.Handle)
	if err != nil {
		writeError(h.logger, w, r, "claim handle", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// DeleteMe handles DELETE /me
// Deletion is best-effort per step; the response reports every step.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	resp := h.accounts.Delete(r.Context(), userID)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// RegisterPushToken handles POST /me/push-tokens
func (h *UserHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "register push token", err)
		return
	}

	if err := h.push.RegisterToken(r.Context(), userID, req); err != nil {
		writeError(h.logger, w, r, "register push token", err)
		return
	}
	writeAck(w, model.AckResponse{OK: true})
}

// RemovePushToken handles DELETE /me/push-tokens
func (h *UserHandler) RemovePushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "remove push token", err)
		return
	}

	if err := h.push.RemoveToken(r.Context(), userID, req.Token); err != nil {
		writeError(h.logger, w, r, "remove push token", err)
		return
	}
	writeAck(w, model.AckResponse{OK: true})
}
