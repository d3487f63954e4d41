package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/service"
)

type NotificationHandler struct {
	notifService *service.NotificationService
	logger       *zap.Logger
}

func NewNotificationHandler(notifService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
		logger:       logger.Named("notification_handler"),
	}
}

// List handles GET /notifications?markRead=0|1&limit=
// Newest first with the unread count. With markRead=1 everything listed is
// marked read after the response is built.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, err := httputil.QueryInt(r, "limit", service.DefaultNotificationLimit)
	if err != nil {
		writeError(h.logger, w, r, "list notifications", err)
		return
	}

	notifications, err := h.notifService.List(r.Context(), userID, limit, httputil.QueryBool(r, "markRead"))
	if err != nil {
		writeError(h.logger, w, r, "list notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notifications)
}
