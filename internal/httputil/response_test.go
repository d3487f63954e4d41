package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoop_backend/internal/model"
)

func TestWriteServiceError_MapsKinds(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{model.Validationf("text is required"), http.StatusBadRequest, ErrCodeBadRequest, "text is required"},
		{model.NewError(model.ErrUnauthorized, "nope"), http.StatusUnauthorized, ErrCodeUnauthorized, "nope"},
		{fmt.Errorf("wrapped: %w", model.ErrForbidden), http.StatusForbidden, ErrCodeForbidden, "wrapped: forbidden"},
		{model.NewError(model.ErrNotFound, "post not found"), http.StatusNotFound, ErrCodeNotFound, "post not found"},
		{model.NewError(model.ErrConflict, "handle is taken"), http.StatusConflict, ErrCodeConflict, "handle is taken"},
		{fmt.Errorf("dynamo: %w", model.ErrUnavailable), http.StatusServiceUnavailable, ErrCodeUnavailable, "Service temporarily unavailable"},
		{model.NewError(model.ErrNotEnabled, "reporting is not enabled"), http.StatusNotImplemented, ErrCodeNotEnabled, "reporting is not enabled"},
		{errors.New("secret connection string leaked"), http.StatusInternalServerError, ErrCodeInternal, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			assert.Equal(t, tt.status, WriteServiceError(rec, tt.err))
			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestWriteServiceError_ModerationCarriesReason(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, fmt.Errorf("create post: %w", &model.ModerationError{Reason: "harassment"}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrCodeModeration, body.Code)
	assert.Equal(t, "harassment", body.Reason)
}

func TestDecodeJSON(t *testing.T) {
	type req struct {
		Text  string `json:"text" validate:"required,max=5"`
		Topic string `json:"topic" validate:"omitempty,oneof=a b"`
	}
	decode := func(body string) (req, error) {
		var v req
		err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &v)
		return v, err
	}

	v, err := decode(`{"text":"hi","topic":"a"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.Text)

	_, err = decode(``)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.EqualError(t, err, "request body is required")

	_, err = decode(`{"text":`)
	assert.EqualError(t, err, "invalid request body")

	_, err = decode(`{"text":"toolong","topic":"c"}`)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.EqualError(t, err, "text must be at most 5; topic must be one of [a b]")

	_, err = decode(`{}`)
	assert.EqualError(t, err, "text is required")
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&markRead=1", nil)

	n, err := QueryInt(r, "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = QueryInt(r, "offset", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = QueryInt(r, "bad", 0)
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.True(t, QueryBool(r, "markRead"))
	assert.False(t, QueryBool(r, "missing"))
}
