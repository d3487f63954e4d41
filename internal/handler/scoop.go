package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

// ScoopHandler serves 24h scoops. Every route answers 501 when the scoops
// table is not configured.
type ScoopHandler struct {
	scoops *service.ScoopService
	logger *zap.Logger
}

func NewScoopHandler(scoops *service.ScoopService, logger *zap.Logger) *ScoopHandler {
	return &ScoopHandler{scoops: scoops, logger: logger.Named("scoop_handler")}
}

// Create handles POST /scoops
func (h *ScoopHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.CreateScoopRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "create scoop", err)
		return
	}

	scoop, err := h.scoops.Create(r.Context(), userID, req)
	if err != nil {
		writeError(h.logger, w, r, "create scoop", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, scoop)
}

// Feed handles GET /scoops
func (h *ScoopHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	feed, err := h.scoops.Feed(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, r, "scoop feed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}

// View handles POST /scoops/{id}/view
func (h *ScoopHandler) View(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	scoopID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.scoops.View(r.Context(), userID, scoopID)
	if err != nil {
		writeError(h.logger, w, r, "view scoop", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Viewers handles GET /scoops/{id}/viewers (author only)
func (h *ScoopHandler) Viewers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	scoopID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	viewers, err := h.scoops.Viewers(r.Context(), userID, scoopID)
	if err != nil {
		writeError(h.logger, w, r, "scoop viewers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewers)
}

// Delete handles DELETE /scoops/{id}
func (h *ScoopHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	scoopID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.scoops.Delete(r.Context(), userID, scoopID); err != nil {
		writeError(h.logger, w, r, "delete scoop", err)
		return
	}
	writeAck(w, model.AckResponse{OK: true})
}
