package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// User is the profile record. ID is the opaque identity-provider subject and never changes;
// Handle is mutable and unique (case-insensitive).
type User struct {
	ID            string                  `json:"id"`
	Handle        string                  `json:"handle,omitempty"`
	DisplayName   string                  `json:"displayName,omitempty"`
	AvatarKey     string                  `json:"avatarKey,omitempty"`
	Notifications NotificationPreferences `json:"notificationPreferences"`
	TermsAccepted bool                    `json:"termsAccepted"`
	InviteCode    string                  `json:"inviteCode,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// NotificationPreferences are pointers so that a missing value means "allowed".
type NotificationPreferences struct {
	Mentions  *bool `json:"mentions,omitempty"`
	Comments  *bool `json:"comments,omitempty"`
	Reactions *bool `json:"reactions,omitempty"`
}

func allowed(b *bool) bool { return b == nil || *b }

func (p NotificationPreferences) MentionsEnabled() bool  { return allowed(p.Mentions) }
func (p NotificationPreferences) CommentsEnabled() bool  { return allowed(p.Comments) }
func (p NotificationPreferences) ReactionsEnabled() bool { return allowed(p.Reactions) }

// UserSummary is the live denormalized view of a user used to hydrate feeds and lists.
type UserSummary struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	AvatarKey   string `json:"avatarKey,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Summary projects the user onto a UserSummary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Handle: u.Handle, AvatarKey: u.AvatarKey, DisplayName: u.DisplayName}
}

// UpdateProfileRequest is the body of PATCH /me. Nil fields are left untouched.
type UpdateProfileRequest struct {
	DisplayName   *string                  `json:"displayName" validate:"omitempty,max=50"`
	AvatarKey     *string                  `json:"avatarKey" validate:"omitempty,max=512"`
	Notifications *NotificationPreferences `json:"notificationPreferences"`
	TermsAccepted *bool                    `json:"termsAccepted"`
}

// ClaimHandleRequest is the body of PUT /me/handle.
type ClaimHandleRequest struct {
	Handle string `json:"handle" validate:"required"`
}

// ProfileResponse is returned by GET /u/{handle}.
type ProfileResponse struct {
	User           UserSummary `json:"user"`
	FollowerCount  int         `json:"followerCount"`
	FollowingCount int         `json:"followingCount"`
	IsSelf         bool        `json:"isSelf"`
	IsFollowing    bool        `json:"isFollowing"`
	RequestPending bool        `json:"requestPending"`
	CanView        bool        `json:"canView"`
}

// Handle constraints.
const (
	HandleMinLength = 3
	HandleMaxLength = 20
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// NormalizeHandle lowercases and trims a candidate handle (and a leading '@').
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

// ValidateHandle checks the normalized form against the handle grammar.
func ValidateHandle(h string) error {
	if !handlePattern.MatchString(h) {
		return ErrInvalidHandle
	}
	return nil
}

var (
	ErrUserNotFound  = NewError(ErrNotFound, "user not found")
	ErrHandleTaken   = NewError(ErrConflict, "handle already taken")
	ErrInvalidHandle = NewError(ErrValidation, "handle must be 3-20 characters of a-z, 0-9 or _")
	ErrMissingUserID = NewError(ErrValidation, "user id is required")
)

// IsUserNotFound reports whether err means the user record is absent.
func IsUserNotFound(err error) bool { return errors.Is(err, ErrUserNotFound) }
