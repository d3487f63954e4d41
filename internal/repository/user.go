package repository

import (
	"context"
	"errors"
	"fmt"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type userRepository struct {
	s store.Store
}

func NewUserRepository(s store.Store) UserRepository {
	return &userRepository{s: s}
}

func (r *userRepository) Get(ctx context.Context, id string, opts ...store.ReadOption) (*model.User, error) {
	if id == "" {
		return nil, model.ErrMissingUserID
	}
	var user model.User
	found, err := getInto(ctx, r.s, store.UserKey(id), &user, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, model.ErrUserNotFound
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := putFrom(ctx, r.s, store.UserKey(user.ID), user, store.NotExists())
	if errors.Is(err, store.ErrConditionFailed) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := putFrom(ctx, r.s, store.UserKey(user.ID), user, nil); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (r *userRepository) BatchGet(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]store.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, store.UserKey(id))
	}
	items, err := r.s.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to batch get users: %w", err)
	}
	return decodeAll[model.User](items), nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	if err := r.s.Delete(ctx, store.UserKey(id)); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

type handleRepository struct {
	s store.Store
}

func NewHandleRepository(s store.Store) HandleRepository {
	return &handleRepository{s: s}
}

type handleOwner struct {
	Handle string `json:"handle"`
	UserID string `json:"userId"`
}

func (r *handleRepository) Owner(ctx context.Context, handle string, opts ...store.ReadOption) (string, bool, error) {
	var owner handleOwner
	found, err := getInto(ctx, r.s, store.HandleKey(handle), &owner, opts...)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve handle: %w", err)
	}
	if !found || owner.UserID == "" {
		return "", false, nil
	}
	return owner.UserID, true, nil
}

func (r *handleRepository) Claim(ctx context.Context, handle, userID string) error {
	// absent, or already ours (re-claim is idempotent)
	cond := &store.Condition{MustNotExist: true, AttrName: "userId", AttrValue: userID}
	err := putFrom(ctx, r.s, store.HandleKey(handle), handleOwner{Handle: handle, UserID: userID}, cond)
	if errors.Is(err, store.ErrConditionFailed) {
		return model.ErrHandleTaken
	}
	if err != nil {
		return fmt.Errorf("failed to claim handle: %w", err)
	}
	return nil
}

func (r *handleRepository) Release(ctx context.Context, handle, userID string) error {
	owner, found, err := r.Owner(ctx, handle, store.Consistent())
	if err != nil {
		return err
	}
	if !found || owner != userID {
		return nil
	}
	if err := r.s.Delete(ctx, store.HandleKey(handle)); err != nil {
		return fmt.Errorf("failed to release handle: %w", err)
	}
	return nil
}

func (r *handleRepository) IndexPut(ctx context.Context, handle, userID string) error {
	if err := putFrom(ctx, r.s, store.HandleIndexKey(handle), HandleEntry{Handle: handle, UserID: userID}, nil); err != nil {
		return fmt.Errorf("failed to index handle: %w", err)
	}
	return nil
}

func (r *handleRepository) IndexDelete(ctx context.Context, handle string) error {
	if err := r.s.Delete(ctx, store.HandleIndexKey(handle)); err != nil {
		return fmt.Errorf("failed to unindex handle: %w", err)
	}
	return nil
}

func (r *handleRepository) SearchPrefix(ctx context.Context, prefix string, limit int) ([]HandleEntry, error) {
	entries, err := queryInto[HandleEntry](ctx, r.s, store.QueryInput{PK: store.PKHandles, SKPrefix: prefix}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search handles: %w", err)
	}
	return entries, nil
}
