package repository

import (
	"context"
	"fmt"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

const countAttr = "count"

type reactionRepository struct {
	s store.Store
}

func NewReactionRepository(s store.Store) ReactionRepository {
	return &reactionRepository{s: s}
}

func (r *reactionRepository) Get(ctx context.Context, postID, userID string) (*model.Reaction, bool, error) {
	var reaction model.Reaction
	found, err := getInto(ctx, r.s, store.ReactionKey(postID, userID), &reaction, store.Consistent())
	if err != nil {
		return nil, false, fmt.Errorf("failed to get reaction: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &reaction, true, nil
}

func (r *reactionRepository) Put(ctx context.Context, reaction *model.Reaction) error {
	if err := putFrom(ctx, r.s, store.ReactionKey(reaction.PostID, reaction.UserID), reaction, nil); err != nil {
		return fmt.Errorf("failed to save reaction: %w", err)
	}
	return nil
}

func (r *reactionRepository) Delete(ctx context.Context, postID, userID string) error {
	if err := r.s.Delete(ctx, store.ReactionKey(postID, userID)); err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	return nil
}

func (r *reactionRepository) AdjustCount(ctx context.Context, postID, emoji string, delta int64) (int64, error) {
	n, err := r.s.Add(ctx, store.ReactionCountKey(postID, emoji), countAttr, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust reaction count: %w", err)
	}
	return n, nil
}

func (r *reactionRepository) Counts(ctx context.Context, postID string) (map[string]int64, error) {
	items, err := store.QueryAll(ctx, r.s, store.QueryInput{PK: store.PostPK(postID), SKPrefix: store.PrefixReactCnt}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read reaction counts: %w", err)
	}
	counts := make(map[string]int64, len(items))
	for _, it := range items {
		emoji, ok := store.Suffix(it.SK, store.PrefixReactCnt)
		if !ok {
			continue
		}
		counts[emoji] = it.Int(countAttr)
	}
	return counts, nil
}

// ListByUser has no index to use and falls back to a scan.
func (r *reactionRepository) ListByUser(ctx context.Context, userID string) ([]model.Reaction, error) {
	items, err := r.s.Scan(ctx, store.Filter{
		PKPrefix: store.PrefixPost,
		SKEquals: store.PrefixReaction + userID,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reactions: %w", err)
	}
	return decodeAll[model.Reaction](items), nil
}
