package repository

import (
	"context"
	"fmt"
	"time"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type deviceTokenRepository struct {
	s store.Store
}

func NewDeviceTokenRepository(s store.Store) DeviceTokenRepository {
	return &deviceTokenRepository{s: s}
}

// tokenRow keeps the token in the item body as well as the key, because
// model.DeviceToken hides it from JSON responses.
type tokenRow struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *deviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	row := tokenRow{UserID: userID, Token: token, Platform: platform, CreatedAt: time.Now().UTC()}
	if err := putFrom(ctx, r.s, store.TokenKey(userID, token), row, nil); err != nil {
		return fmt.Errorf("failed to upsert device token: %w", err)
	}
	return nil
}

func (r *deviceTokenRepository) GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	rows, err := queryInto[tokenRow](ctx, r.s, store.QueryInput{PK: store.UserPK(userID), SKPrefix: store.PrefixToken}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	tokens := make([]model.DeviceToken, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, model.DeviceToken{
			UserID:    row.UserID,
			Token:     row.Token,
			Platform:  row.Platform,
			CreatedAt: row.CreatedAt,
		})
	}
	return tokens, nil
}

func (r *deviceTokenRepository) Delete(ctx context.Context, userID, token string) error {
	if err := r.s.Delete(ctx, store.TokenKey(userID, token)); err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}
