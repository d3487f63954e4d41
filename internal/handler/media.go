package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scoop_backend/internal/httputil"
	"scoop_backend/internal/model"
	"scoop_backend/internal/service"
)

type MediaHandler struct {
	mediaService *service.MediaService
	logger       *zap.Logger
}

func NewMediaHandler(mediaService *service.MediaService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{mediaService: mediaService, logger: logger.Named("media_handler")}
}

// Presign handles POST /media/presign {contentType, purpose, fileSize}
// Returns a presigned PUT URL for uploading directly to the bucket.
func (h *MediaHandler) Presign(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.PresignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.logger, w, r, "presign upload", err)
		return
	}

	res, err := h.mediaService.Presign(r.Context(), userID, req)
	if err != nil {
		writeError(h.logger, w, r, "presign upload", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
