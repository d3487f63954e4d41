package identity

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseApp holds the initialized Firebase app and its auth client.
type FirebaseApp struct {
	App  *firebase.App
	Auth *auth.Client
}

// NewFirebaseApp initializes Firebase from a service-account credentials file.
func NewFirebaseApp(ctx context.Context, credentialsPath string) (*FirebaseApp, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}
	if _, err := os.Stat(credentialsPath); err != nil {
		return nil, fmt.Errorf("firebase credentials file: %w", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firebase auth client: %w", err)
	}
	return &FirebaseApp{App: app, Auth: authClient}, nil
}

// Messaging returns the FCM client for the same project.
func (f *FirebaseApp) Messaging(ctx context.Context) (*messaging.Client, error) {
	client, err := f.App.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return client, nil
}

// idTokenVerifier is the part of *auth.Client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier verifies Firebase ID tokens; the Firebase UID is the user id.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Principal, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if auth.IsIDTokenExpired(err) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	email, _ := token.Claims["email"].(string)
	return Principal{UserID: token.UID, Email: email}, nil
}

type userDeleter interface {
	DeleteUser(ctx context.Context, uid string) error
}

// FirebaseCredentialDeleter removes the Firebase account. A missing account is not an error.
type FirebaseCredentialDeleter struct {
	client userDeleter
}

func NewFirebaseCredentialDeleter(client *auth.Client) *FirebaseCredentialDeleter {
	return &FirebaseCredentialDeleter{client: client}
}

func (d *FirebaseCredentialDeleter) DeleteUser(ctx context.Context, userID string) error {
	if err := d.client.DeleteUser(ctx, userID); err != nil {
		if auth.IsUserNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}
