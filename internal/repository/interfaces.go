package repository

import (
	"context"
	"time"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type UserRepository interface {
	Get(ctx context.Context, id string, opts ...store.ReadOption) (*model.User, error)
	// Create writes the record only if no record exists for the id.
	Create(ctx context.Context, user *model.User) error
	Put(ctx context.Context, user *model.User) error
	BatchGet(ctx context.Context, ids []string) ([]model.User, error)
	Delete(ctx context.Context, id string) error
}

// HandleEntry is one row of the handle search index.
type HandleEntry struct {
	Handle string `json:"handle"`
	UserID string `json:"userId"`
}

type HandleRepository interface {
	Owner(ctx context.Context, handle string, opts ...store.ReadOption) (string, bool, error)
	// Claim maps handle to userID unless another user already owns it (model.ErrHandleTaken).
	Claim(ctx context.Context, handle, userID string) error
	// Release removes the mapping if userID still owns it.
	Release(ctx context.Context, handle, userID string) error
	IndexPut(ctx context.Context, handle, userID string) error
	IndexDelete(ctx context.Context, handle string) error
	SearchPrefix(ctx context.Context, prefix string, limit int) ([]HandleEntry, error)
}

type FollowRepository interface {
	Create(ctx context.Context, followerID, followeeID string) error
	Delete(ctx context.Context, followerID, followeeID string) error
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
}

type BlockRepository interface {
	Create(ctx context.Context, blockerID, blockedID string) error
	Delete(ctx context.Context, blockerID, blockedID string) error
	Exists(ctx context.Context, blockerID, blockedID string) (bool, error)
	// BlockedIDs lists users that userID blocked.
	BlockedIDs(ctx context.Context, userID string) ([]model.Block, error)
	// BlockedByIDs lists users that blocked userID.
	BlockedByIDs(ctx context.Context, userID string) ([]string, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	Get(ctx context.Context, id string) (*model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	// Delete removes the canonical record and both index refs. Comments and
	// reactions are removed by the caller.
	Delete(ctx context.Context, post *model.Post) error
	BatchGet(ctx context.Context, ids []string) ([]model.Post, error)
	// RefsByAuthor returns up to limit refs, newest first (limit <= 0 means all).
	RefsByAuthor(ctx context.Context, authorID string, limit int) ([]model.PostRef, error)
	RecentRefs(ctx context.Context, limit int) ([]model.PostRef, error)
	// Partition returns every item stored under the post's partition.
	Partition(ctx context.Context, postID string) ([]store.Item, error)
	DeleteKey(ctx context.Context, key store.Key) error
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	Get(ctx context.Context, id string) (*model.Comment, error)
	// ListByPost returns comments oldest first; limit <= 0 means all.
	ListByPost(ctx context.Context, postID string, limit int) ([]model.Comment, error)
	Delete(ctx context.Context, comment *model.Comment) error
	ListByUser(ctx context.Context, userID string) ([]model.Comment, error)
}

type ReactionRepository interface {
	Get(ctx context.Context, postID, userID string) (*model.Reaction, bool, error)
	Put(ctx context.Context, reaction *model.Reaction) error
	Delete(ctx context.Context, postID, userID string) error
	AdjustCount(ctx context.Context, postID, emoji string, delta int64) (int64, error)
	Counts(ctx context.Context, postID string) (map[string]int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reaction, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	// List returns the newest notifications first; limit <= 0 means all.
	List(ctx context.Context, targetID string, limit int) ([]model.Notification, error)
	Delete(ctx context.Context, n *model.Notification) error
	MarkRead(ctx context.Context, n *model.Notification) error
	ListBySource(ctx context.Context, sourceID string) ([]model.Notification, error)
}

type DeviceTokenRepository interface {
	// Upsert creates or updates a device token for a user
	Upsert(ctx context.Context, userID, token, platform string) error
	// GetByUserID returns all device tokens for a user
	GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error)
	// Delete removes a device token
	Delete(ctx context.Context, userID, token string) error
}

type InviteRepository interface {
	Create(ctx context.Context, invite *model.Invite) error
	Get(ctx context.Context, code string) (*model.Invite, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Invite, error)
	// Redeem marks a live code as used by userID (model.ErrInviteUsed if it was not live).
	Redeem(ctx context.Context, invite *model.Invite, userID string, at time.Time) error
	Delete(ctx context.Context, invite *model.Invite) error
}

type ScoopRepository interface {
	Create(ctx context.Context, scoop *model.Scoop) error
	Get(ctx context.Context, id string) (*model.Scoop, error)
	Delete(ctx context.Context, scoop *model.Scoop) error
	// ListByAuthor returns scoops created at or after since, newest first.
	ListByAuthor(ctx context.Context, authorID string, since time.Time) ([]model.Scoop, error)
	// AddViewer records a view once per viewer; it reports false for repeats.
	AddViewer(ctx context.Context, scoopID string, viewer model.ScoopViewer) (bool, error)
	IncrementViews(ctx context.Context, scoopID string) (int64, error)
	ListViewers(ctx context.Context, scoopID string) ([]model.ScoopViewer, error)
	ListAll(ctx context.Context, limit int) ([]model.Scoop, error)
}

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	ListForContent(ctx context.Context, contentType, contentID string) ([]model.Report, error)
}
