package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

// InviteHandler serves invite codes and content reports.
type InviteHandler struct {
	invites *service.InviteService
	reports *service.ReportService
	logger  *zap.Logger
}

func NewInviteHandler(invites *service.InviteService, reports *service.ReportService, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, reports: reports, logger: logger.Named("invite_handler")}
}

// Create handles POST /invites
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	invite, err := h.invites.Create(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, r, "create invite", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, invite)
}

// List handles GET /invites
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.invites.List(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, r, "list invites", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// Redeem handles POST /invites/redeem {code}
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.RedeemInviteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "redeem invite", err)
		return
	}

	invite, err := h.invites.Redeem(r.Context(), userID, req.Code)
	if err != nil {
		writeError(h.logger, w, r, "redeem invite", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invite)
}

// Report handles POST /reports {contentType, contentId, reason}
func (h *InviteHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.CreateReportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "create report", err)
		return
	}

	report, err := h.reports.Create(r.Context(), userID, req)
	if err != nil {
		writeError(h.logger, w, r, "create report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}
