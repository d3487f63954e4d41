package model

import "time"

// Post is the canonical post record. Author fields are a snapshot taken at creation
// time and are overridden with live values when the post is served.
type Post struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Handle      string      `json:"handle"`
	DisplayName string      `json:"displayName,omitempty"`
	AvatarKey   string      `json:"avatarKey,omitempty"`
	Text        string      `json:"text"`
	Images      []PostImage `json:"images"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
}

// PostImage is an uploaded image reference plus its aspect ratio (width / height).
type PostImage struct {
	Key         string  `json:"key" validate:"required,max=512"`
	AspectRatio float64 `json:"aspectRatio" validate:"gte=0"`
}

// PostRef is the lightweight pointer stored in timelines and the global index.
type PostRef struct {
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedItem is a post hydrated for display.
type FeedItem struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Handle       string           `json:"handle"`
	DisplayName  string           `json:"displayName,omitempty"`
	AvatarKey    string           `json:"avatarKey,omitempty"`
	Text         string           `json:"text"`
	Images       []PostImage      `json:"images"`
	CreatedAt    time.Time        `json:"createdAt"`
	Comments     []CommentPreview `json:"comments"`
	CommentCount int              `json:"commentCount"`
}

// FeedResponse is returned by GET /feed and the profile post listing.
type FeedResponse struct {
	Items    []FeedItem `json:"items"`
	Source   string     `json:"source,omitempty"`
	Degraded []string   `json:"degraded,omitempty"`
}

// Feed sources.
const (
	FeedSourceFollowing = "following"
	FeedSourceGlobal    = "global"
	FeedSourceProfile   = "profile"
)

// CreatePostRequest accepts either a single imageKey or an images array.
type CreatePostRequest struct {
	Text     string      `json:"text" validate:"max=500"`
	ImageKey string      `json:"imageKey" validate:"omitempty,max=512"`
	Images   []PostImage `json:"images" validate:"omitempty,max=10,dive"`
}

// AllImages merges the legacy single-image field into the images list.
func (r CreatePostRequest) AllImages() []PostImage {
	images := append([]PostImage(nil), r.Images...)
	if r.ImageKey != "" {
		images = append([]PostImage{{Key: r.ImageKey, AspectRatio: 1}}, images...)
	}
	return images
}

// UpdatePostRequest is the body of PATCH /posts/{id}.
type UpdatePostRequest struct {
	Text   *string      `json:"text" validate:"omitempty,max=500"`
	Images *[]PostImage `json:"images" validate:"omitempty,max=10,dive"`
}

// Post constraints
const (
	MaxPostTextLength = 500
	MaxPostImages     = 10
)

var (
	ErrPostNotFound = NewError(ErrNotFound, "post not found")
	ErrNotPostOwner = NewError(ErrForbidden, "not the owner of this post")
	ErrEmptyPost    = NewError(ErrValidation, "post needs text or at least one image")
	ErrPostTooLong  = NewError(ErrValidation, "post text too long (max 500 characters)")
	ErrTooManyMedia = NewError(ErrValidation, "too many images (max 10)")
)
