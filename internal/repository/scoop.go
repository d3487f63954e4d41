package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

const viewCountAttr = "viewCount"

type scoopRepository struct {
	s store.Store
}

// NewScoopRepository binds to the scoops table, which is separate from the main table.
func NewScoopRepository(s store.Store) ScoopRepository {
	return &scoopRepository{s: s}
}

func (r *scoopRepository) Create(ctx context.Context, scoop *model.Scoop) error {
	if err := putFrom(ctx, r.s, store.ScoopKey(scoop.ID), scoop, store.NotExists()); err != nil {
		return fmt.Errorf("failed to create scoop: %w", err)
	}
	if err := putFrom(ctx, r.s, store.ScoopAuthorKey(scoop.UserID, scoop.CreatedAt, scoop.ID), scoop, nil); err != nil {
		return fmt.Errorf("failed to write scoop author ref: %w", err)
	}
	return nil
}

func (r *scoopRepository) Get(ctx context.Context, id string) (*model.Scoop, error) {
	var scoop model.Scoop
	found, err := getInto(ctx, r.s, store.ScoopKey(id), &scoop)
	if err != nil {
		return nil, fmt.Errorf("failed to get scoop: %w", err)
	}
	if !found {
		return nil, model.ErrScoopNotFound
	}
	return &scoop, nil
}

// Delete removes viewers, the author ref and the canonical record.
func (r *scoopRepository) Delete(ctx context.Context, scoop *model.Scoop) error {
	viewers, err := store.QueryAll(ctx, r.s, store.QueryInput{PK: store.ScoopPK(scoop.ID), SKPrefix: store.PrefixViewer}, 0)
	if err != nil {
		return fmt.Errorf("failed to list scoop viewers: %w", err)
	}
	for _, v := range viewers {
		if err := r.s.Delete(ctx, v.Key()); err != nil {
			return fmt.Errorf("failed to delete scoop viewer: %w", err)
		}
	}
	if err := r.s.Delete(ctx, store.ScoopAuthorKey(scoop.UserID, scoop.CreatedAt, scoop.ID)); err != nil {
		return fmt.Errorf("failed to delete scoop author ref: %w", err)
	}
	if err := r.s.Delete(ctx, store.ScoopKey(scoop.ID)); err != nil {
		return fmt.Errorf("failed to delete scoop: %w", err)
	}
	return nil
}

// ListByAuthor reads the author refs; view counts live on the canonical record
// and are merged in with one batch get.
func (r *scoopRepository) ListByAuthor(ctx context.Context, authorID string, since time.Time) ([]model.Scoop, error) {
	refs, err := queryInto[model.Scoop](ctx, r.s, store.QueryInput{
		PK:         store.UserPK(authorID),
		SKPrefix:   store.PrefixScoop,
		SKFrom:     store.PrefixScoop + store.TS13(since),
		Descending: true,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list scoops: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	keys := make([]store.Key, 0, len(refs))
	for _, s := range refs {
		keys = append(keys, store.ScoopKey(s.ID))
	}
	items, err := r.s.BatchGet(ctx, keys)
	if err != nil {
		// refs are enough to render; counts are cosmetic
		return refs, nil
	}
	counts := make(map[string]int64, len(items))
	for _, it := range items {
		counts[it.String("id")] = it.Int(viewCountAttr)
	}
	for i := range refs {
		refs[i].ViewCount = counts[refs[i].ID]
	}
	return refs, nil
}

func (r *scoopRepository) AddViewer(ctx context.Context, scoopID string, viewer model.ScoopViewer) (bool, error) {
	err := putFrom(ctx, r.s, store.ScoopViewerKey(scoopID, viewer.UserID), viewer, store.NotExists())
	if errors.Is(err, store.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record scoop view: %w", err)
	}
	return true, nil
}

func (r *scoopRepository) IncrementViews(ctx context.Context, scoopID string) (int64, error) {
	n, err := r.s.Add(ctx, store.ScoopKey(scoopID), viewCountAttr, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to increment scoop views: %w", err)
	}
	return n, nil
}

func (r *scoopRepository) ListViewers(ctx context.Context, scoopID string) ([]model.ScoopViewer, error) {
	viewers, err := queryInto[model.ScoopViewer](ctx, r.s, store.QueryInput{PK: store.ScoopPK(scoopID), SKPrefix: store.PrefixViewer}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list scoop viewers: %w", err)
	}
	return viewers, nil
}

func (r *scoopRepository) ListAll(ctx context.Context, limit int) ([]model.Scoop, error) {
	items, err := r.s.Scan(ctx, store.Filter{PKPrefix: store.PrefixScoop, SKEquals: store.SKMeta}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scoops: %w", err)
	}
	return decodeAll[model.Scoop](items), nil
}
