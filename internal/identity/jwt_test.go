package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoop_backend/internal/model"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, err := v.Issue("user-123", time.Minute)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", p.UserID)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, err := v.Issue("user-123", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.True(t, errors.Is(err, model.ErrUnauthorized))
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	token, err := NewJWTVerifier("other").Issue("user-123", time.Minute)
	require.NoError(t, err)

	_, err = NewJWTVerifier("test-secret").Verify(context.Background(), token)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier("test-secret").Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
