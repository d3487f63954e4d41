package repository

import (
	"context"
	"fmt"
	"time"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type followRepository struct {
	s store.Store
}

func NewFollowRepository(s store.Store) FollowRepository {
	return &followRepository{s: s}
}

// Create writes the forward edge first: it is the source of truth, the reverse
// edge only serves follower listings.
func (r *followRepository) Create(ctx context.Context, followerID, followeeID string) error {
	f := model.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()}
	if err := putFrom(ctx, r.s, store.FollowKey(followerID, followeeID), f, nil); err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}
	if err := putFrom(ctx, r.s, store.FollowerKey(followeeID, followerID), f, nil); err != nil {
		return fmt.Errorf("failed to create follower edge: %w", err)
	}
	return nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followeeID string) error {
	if err := r.s.Delete(ctx, store.FollowKey(followerID, followeeID)); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	if err := r.s.Delete(ctx, store.FollowerKey(followeeID, followerID)); err != nil {
		return fmt.Errorf("failed to delete follower edge: %w", err)
	}
	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	_, found, err := r.s.Get(ctx, store.FollowKey(followerID, followeeID))
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return found, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := suffixes(ctx, r.s, store.UserPK(userID), store.PrefixFollows)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return ids, nil
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := suffixes(ctx, r.s, store.UserPK(userID), store.PrefixFollower)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return ids, nil
}

type blockRepository struct {
	s store.Store
}

func NewBlockRepository(s store.Store) BlockRepository {
	return &blockRepository{s: s}
}

func (r *blockRepository) Create(ctx context.Context, blockerID, blockedID string) error {
	b := model.Block{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: time.Now().UTC()}
	if err := putFrom(ctx, r.s, store.BlockKey(blockerID, blockedID), b, nil); err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	if err := putFrom(ctx, r.s, store.BlockedByKey(blockedID, blockerID), b, nil); err != nil {
		return fmt.Errorf("failed to create blocked-by edge: %w", err)
	}
	return nil
}

func (r *blockRepository) Delete(ctx context.Context, blockerID, blockedID string) error {
	if err := r.s.Delete(ctx, store.BlockKey(blockerID, blockedID)); err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	if err := r.s.Delete(ctx, store.BlockedByKey(blockedID, blockerID)); err != nil {
		return fmt.Errorf("failed to delete blocked-by edge: %w", err)
	}
	return nil
}

func (r *blockRepository) Exists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	_, found, err := r.s.Get(ctx, store.BlockKey(blockerID, blockedID))
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return found, nil
}

func (r *blockRepository) BlockedIDs(ctx context.Context, userID string) ([]model.Block, error) {
	blocks, err := queryInto[model.Block](ctx, r.s, store.QueryInput{PK: store.UserPK(userID), SKPrefix: store.PrefixBlocks}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	return blocks, nil
}

func (r *blockRepository) BlockedByIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := suffixes(ctx, r.s, store.UserPK(userID), store.PrefixBlockedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked-by: %w", err)
	}
	return ids, nil
}
