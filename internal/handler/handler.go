// Package handler holds the chi HTTP handlers. Handlers decode and validate
// input, call one service, and map the result through httputil.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	authmw "scoop_backend/internal/transport/http/middleware"
)

// currentUser returns the authenticated caller, writing a 401 when absent.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := authmw.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, httputil.ErrCodeUnauthorized, "Authentication required")
		return "", false
	}
	return userID, true
}

// pathID reads a non-empty path parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if id == "" {
		httputil.WriteBadRequest(w, "Invalid "+name)
		return "", false
	}
	return id, true
}

// writeError maps err to a response. Server-side failures are logged with
// the request id; client errors are not.
func writeError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, op string, err error) {
	status := httputil.WriteServiceError(w, err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		userID, _ := authmw.GetUserIDFromContext(r.Context())
		logger.Error(op+" failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func writeAck(w http.ResponseWriter, ack model.AckResponse) {
	httputil.WriteJSON(w, http.StatusOK, ack)
}
