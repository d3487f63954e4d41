package repository

import (
	"context"
	"fmt"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type notificationRepository struct {
	s store.Store
}

func NewNotificationRepository(s store.Store) NotificationRepository {
	return &notificationRepository{s: s}
}

func notificationKey(n *model.Notification) store.Key {
	return store.NotificationKey(n.TargetID, n.CreatedAt, n.ID)
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := putFrom(ctx, r.s, notificationKey(n), n, nil); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, targetID string, limit int) ([]model.Notification, error) {
	list, err := queryInto[model.Notification](ctx, r.s, store.QueryInput{
		PK:         store.UserPK(targetID),
		SKPrefix:   store.PrefixNotif,
		Descending: true,
		Consistent: true,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

func (r *notificationRepository) Delete(ctx context.Context, n *model.Notification) error {
	if err := r.s.Delete(ctx, notificationKey(n)); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, n *model.Notification) error {
	read := *n
	read.Read = true
	read.Source = nil
	if err := putFrom(ctx, r.s, notificationKey(&read), &read, nil); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// ListBySource has no index to use and falls back to a scan.
func (r *notificationRepository) ListBySource(ctx context.Context, sourceID string) ([]model.Notification, error) {
	items, err := r.s.Scan(ctx, store.Filter{
		PKPrefix: store.PrefixUser,
		SKPrefix: store.PrefixNotif,
		Equals:   map[string]any{"sourceId": sourceID},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}
	return decodeAll[model.Notification](items), nil
}
