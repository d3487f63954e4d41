package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"scoop_backend/internal/model"
)

// Error codes carried in the "code" field of error bodies
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUnavailable    = "UNAVAILABLE"
	ErrCodeNotEnabled     = "NOT_ENABLED"
	ErrCodeModeration     = "CONTENT_REJECTED"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeTokenExpired   = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid   = "TOKEN_INVALID"
	ErrCodeTokenMissing   = "TOKEN_MISSING"
	ErrCodeInvalidRequest = "INVALID_REQUEST_BODY"
)

// ErrorResponse is the body of every non-2xx response:
// {"message": "Human readable message", "code": "ERROR_CODE"}
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"` // moderation rejections only
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// headers are already sent, nothing useful to do on failure
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an error response with an explicit status and code.
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message, Code: code})
}

// StatusFor maps an error's kind to its HTTP status and code.
// Unclassified errors are 500.
func StatusFor(err error) (int, string) {
	switch model.Kind(err) {
	case model.ErrValidation:
		return http.StatusBadRequest, ErrCodeBadRequest
	case model.ErrUnauthorized:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case model.ErrForbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case model.ErrNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case model.ErrConflict:
		return http.StatusConflict, ErrCodeConflict
	case model.ErrUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case model.ErrNotEnabled:
		return http.StatusNotImplemented, ErrCodeNotEnabled
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// WriteServiceError writes err using its kind. The message of an
// unclassified error is never exposed. It returns the status written.
func WriteServiceError(w http.ResponseWriter, err error) int {
	var modErr *model.ModerationError
	if errors.As(err, &modErr) {
		WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Message: modErr.Error(),
			Code:    ErrCodeModeration,
			Reason:  modErr.Reason,
		})
		return http.StatusForbidden
	}

	status, code := StatusFor(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "Internal server error"
	case http.StatusServiceUnavailable:
		message = "Service temporarily unavailable"
	}
	WriteError(w, status, code, message)
	return status
}

// Common error response helpers

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteUnauthorizedWithCode writes a 401 Unauthorized error with a custom code
func WriteUnauthorizedWithCode(w http.ResponseWriter, code string, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
