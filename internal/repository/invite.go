package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type inviteRepository struct {
	s store.Store
}

func NewInviteRepository(s store.Store) InviteRepository {
	return &inviteRepository{s: s}
}

type inviteRef struct {
	Code string `json:"code"`
}

func (r *inviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	err := putFrom(ctx, r.s, store.InviteKey(invite.Code), invite, store.NotExists())
	if errors.Is(err, store.ErrConditionFailed) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	if err := putFrom(ctx, r.s, store.InviteOwnerKey(invite.OwnerID, invite.Code), inviteRef{Code: invite.Code}, nil); err != nil {
		return fmt.Errorf("failed to write invite owner ref: %w", err)
	}
	return nil
}

func (r *inviteRepository) Get(ctx context.Context, code string) (*model.Invite, error) {
	var invite model.Invite
	found, err := getInto(ctx, r.s, store.InviteKey(code), &invite, store.Consistent())
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if !found {
		return nil, model.ErrInviteNotFound
	}
	return &invite, nil
}

func (r *inviteRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Invite, error) {
	codes, err := suffixes(ctx, r.s, store.UserPK(ownerID), store.PrefixInvite)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite refs: %w", err)
	}
	if len(codes) == 0 {
		return nil, nil
	}
	keys := make([]store.Key, 0, len(codes))
	for _, c := range codes {
		keys = append(keys, store.InviteKey(c))
	}
	items, err := r.s.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to batch get invites: %w", err)
	}
	return decodeAll[model.Invite](items), nil
}

func (r *inviteRepository) Redeem(ctx context.Context, invite *model.Invite, userID string, at time.Time) error {
	used := *invite
	used.Status = model.InviteStatusUsed
	used.UsedBy = userID
	used.UsedAt = &at
	err := putFrom(ctx, r.s, store.InviteKey(invite.Code), &used, &store.Condition{AttrName: "status", AttrValue: model.InviteStatusLive})
	if errors.Is(err, store.ErrConditionFailed) {
		return model.ErrInviteUsed
	}
	if err != nil {
		return fmt.Errorf("failed to redeem invite: %w", err)
	}
	*invite = used
	return nil
}

func (r *inviteRepository) Delete(ctx context.Context, invite *model.Invite) error {
	if err := r.s.Delete(ctx, store.InviteOwnerKey(invite.OwnerID, invite.Code)); err != nil {
		return fmt.Errorf("failed to delete invite ref: %w", err)
	}
	if err := r.s.Delete(ctx, store.InviteKey(invite.Code)); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return nil
}
