package repository

import (
	"context"
	"fmt"
	"time"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type commentRepository struct {
	s store.Store
}

func NewCommentRepository(s store.Store) CommentRepository {
	return &commentRepository{s: s}
}

// commentPointer lets a comment be found by id alone.
type commentPointer struct {
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	if err := putFrom(ctx, r.s, store.CommentKey(c.PostID, c.CreatedAt, c.ID), c, nil); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	ptr := commentPointer{PostID: c.PostID, CreatedAt: c.CreatedAt}
	if err := putFrom(ctx, r.s, store.CommentPointerKey(c.ID), ptr, nil); err != nil {
		return fmt.Errorf("failed to write comment pointer: %w", err)
	}
	return nil
}

func (r *commentRepository) Get(ctx context.Context, id string) (*model.Comment, error) {
	var ptr commentPointer
	found, err := getInto(ctx, r.s, store.CommentPointerKey(id), &ptr)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment pointer: %w", err)
	}
	if !found {
		return nil, model.ErrCommentNotFound
	}
	var c model.Comment
	found, err = getInto(ctx, r.s, store.CommentKey(ptr.PostID, ptr.CreatedAt, id), &c)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	if !found {
		return nil, model.ErrCommentNotFound
	}
	return &c, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string, limit int) ([]model.Comment, error) {
	comments, err := queryInto[model.Comment](ctx, r.s, store.QueryInput{
		PK:       store.PostPK(postID),
		SKPrefix: store.PrefixComment,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

func (r *commentRepository) Delete(ctx context.Context, c *model.Comment) error {
	if err := r.s.Delete(ctx, store.CommentKey(c.PostID, c.CreatedAt, c.ID)); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if err := r.s.Delete(ctx, store.CommentPointerKey(c.ID)); err != nil {
		return fmt.Errorf("failed to delete comment pointer: %w", err)
	}
	return nil
}

// ListByUser has no index to use and falls back to a scan.
func (r *commentRepository) ListByUser(ctx context.Context, userID string) ([]model.Comment, error) {
	items, err := r.s.Scan(ctx, store.Filter{
		PKPrefix: store.PrefixPost,
		SKPrefix: store.PrefixComment,
		Equals:   map[string]any{"userId": userID},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan comments: %w", err)
	}
	return decodeAll[model.Comment](items), nil
}
