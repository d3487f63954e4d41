package model

import (
	"time"
)

// ScoopLifetime is how long a scoop stays visible after creation.
const ScoopLifetime = 24 * time.Hour

// Scoop media types
const (
	ScoopMediaImage = "image"
	ScoopMediaVideo = "video"
)

// TextOverlay is a caption block drawn over scoop media.
type TextOverlay struct {
	Text     string  `json:"text" validate:"max=200"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
}

// Scoop is an ephemeral post.
type Scoop struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Handle       string        `json:"handle"`
	AvatarKey    string        `json:"avatarKey,omitempty"`
	MediaKey     string        `json:"mediaKey"`
	MediaType    string        `json:"mediaType"`
	Caption      string        `json:"caption,omitempty"`
	TextOverlays []TextOverlay `json:"textOverlays,omitempty"`
	ViewCount    int64         `json:"viewCount"`
	CreatedAt    time.Time     `json:"createdAt"`
	ExpiresAt    time.Time     `json:"expiresAt"`
}

// IsExpired reports whether the scoop is logically gone at now.
func (s *Scoop) IsExpired(now time.Time) bool {
	return !now.Before(s.CreatedAt.Add(ScoopLifetime))
}

// CreateScoopRequest is the body of POST /scoops.
type CreateScoopRequest struct {
	MediaKey     string        `json:"mediaKey" validate:"required"`
	MediaType    string        `json:"mediaType" validate:"required,oneof=image video"`
	Caption      string        `json:"caption" validate:"max=200"`
	TextOverlays []TextOverlay `json:"textOverlays" validate:"max=10,dive"`
}

// ScoopViewer is one recorded view.
type ScoopViewer struct {
	UserID   string    `json:"userId"`
	Handle   string    `json:"handle,omitempty"`
	ViewedAt time.Time `json:"viewedAt"`
}

// ScoopGroup is one author's live scoops, oldest first.
type ScoopGroup struct {
	Author UserSummary `json:"author"`
	Scoops []Scoop     `json:"scoops"`
}

// ScoopFeedResponse is returned by GET /scoops.
type ScoopFeedResponse struct {
	Groups []ScoopGroup `json:"groups"`
}

// ScoopViewResponse is returned after recording a view.
type ScoopViewResponse struct {
	Recorded  bool  `json:"recorded"`
	ViewCount int64 `json:"viewCount"`
}

var (
	ErrScoopNotFound   = NewError(ErrNotFound, "scoop not found")
	ErrNotScoopOwner   = NewError(ErrForbidden, "only the author can do that")
	ErrScoopsDisabled  = NewError(ErrNotEnabled, "scoops are not enabled")
	ErrInvalidScoopKey = NewError(ErrValidation, "mediaKey must reference an uploaded scoop object")
)
