// Package identity verifies bearer tokens and talks to the credential provider.
package identity

import (
	"context"

	"scoop_backend/internal/model"
)

// Principal is the verified caller.
type Principal struct {
	UserID string
	Email  string
}

// Verifier turns a bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// CredentialDeleter removes a user's login credential at the identity provider.
type CredentialDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

var (
	ErrTokenExpired = model.NewError(model.ErrUnauthorized, "access token has expired")
	ErrTokenInvalid = model.NewError(model.ErrUnauthorized, "invalid authentication token")
)
