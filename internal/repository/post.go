package repository

import (
	"context"
	"errors"
	"fmt"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type postRepository struct {
	s store.Store
}

func NewPostRepository(s store.Store) PostRepository {
	return &postRepository{s: s}
}

func refOf(p *model.Post) model.PostRef {
	return model.PostRef{PostID: p.ID, AuthorID: p.UserID, CreatedAt: p.CreatedAt}
}

// Create writes the canonical record before the index refs so a ref never
// points at nothing for longer than a failed request.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	err := putFrom(ctx, r.s, store.PostKey(post.ID), post, store.NotExists())
	if errors.Is(err, store.ErrConditionFailed) {
		return model.NewError(model.ErrConflict, "post id collision")
	}
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	ref := refOf(post)
	if err := putFrom(ctx, r.s, store.TimelineKey(post.UserID, post.CreatedAt, post.ID), ref, nil); err != nil {
		return fmt.Errorf("failed to write timeline ref: %w", err)
	}
	if err := putFrom(ctx, r.s, store.GlobalPostKey(post.CreatedAt, post.ID), ref, nil); err != nil {
		return fmt.Errorf("failed to write global ref: %w", err)
	}
	return nil
}

func (r *postRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	found, err := getInto(ctx, r.s, store.PostKey(id), &post)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if !found {
		return nil, model.ErrPostNotFound
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	if err := putFrom(ctx, r.s, store.PostKey(post.ID), post, nil); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete removes the refs first, then the canonical record.
func (r *postRepository) Delete(ctx context.Context, post *model.Post) error {
	if err := r.s.Delete(ctx, store.GlobalPostKey(post.CreatedAt, post.ID)); err != nil {
		return fmt.Errorf("failed to delete global ref: %w", err)
	}
	if err := r.s.Delete(ctx, store.TimelineKey(post.UserID, post.CreatedAt, post.ID)); err != nil {
		return fmt.Errorf("failed to delete timeline ref: %w", err)
	}
	if err := r.s.Delete(ctx, store.PostKey(post.ID)); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (r *postRepository) BatchGet(ctx context.Context, ids []string) ([]model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]store.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, store.PostKey(id))
	}
	items, err := r.s.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to batch get posts: %w", err)
	}
	return decodeAll[model.Post](items), nil
}

func (r *postRepository) RefsByAuthor(ctx context.Context, authorID string, limit int) ([]model.PostRef, error) {
	refs, err := queryInto[model.PostRef](ctx, r.s, store.QueryInput{
		PK:         store.UserPK(authorID),
		SKPrefix:   store.PrefixPost,
		Descending: true,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list author posts: %w", err)
	}
	return refs, nil
}

func (r *postRepository) RecentRefs(ctx context.Context, limit int) ([]model.PostRef, error) {
	refs, err := queryInto[model.PostRef](ctx, r.s, store.QueryInput{
		PK:         store.PKPosts,
		Descending: true,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts: %w", err)
	}
	return refs, nil
}

func (r *postRepository) Partition(ctx context.Context, postID string) ([]store.Item, error) {
	items, err := store.QueryAll(ctx, r.s, store.QueryInput{PK: store.PostPK(postID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read post partition: %w", err)
	}
	return items, nil
}

func (r *postRepository) DeleteKey(ctx context.Context, key store.Key) error {
	if err := r.s.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
