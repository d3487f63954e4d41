package model

import "time"

// Comment is a comment on a post. ParentCommentID allows one level of replies.
type Comment struct {
	ID              string    `json:"id"`
	PostID          string    `json:"postId"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	UserID          string    `json:"userId"`
	Handle          string    `json:"handle"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CommentPreview is a comment as shown under a feed item.
type CommentPreview struct {
	ID              string    `json:"id"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	UserID          string    `json:"userId"`
	Handle          string    `json:"handle"`
	AvatarKey       string    `json:"avatarKey,omitempty"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Preview converts a comment to its preview form.
func (c *Comment) Preview() CommentPreview {
	return CommentPreview{ID: c.ID, ParentCommentID: c.ParentCommentID, UserID: c.UserID, Handle: c.Handle, Text: c.Text, CreatedAt: c.CreatedAt}
}

// CreateCommentRequest is the body of POST /posts/{id}/comments.
type CreateCommentRequest struct {
	Text            string `json:"text" validate:"required,max=500"`
	ParentCommentID string `json:"parentCommentId" validate:"omitempty,max=64"`
}

// CommentListResponse lists comments oldest first.
type CommentListResponse struct {
	Comments []CommentPreview `json:"comments"`
	Count    int              `json:"count"`
}

// Comment constraints
const (
	MaxCommentLength   = 500
	CommentPreviewSize = 3
)

var (
	ErrCommentNotFound   = NewError(ErrNotFound, "comment not found")
	ErrNotCommentOwner   = NewError(ErrForbidden, "not allowed to delete this comment")
	ErrCommentRequired   = NewError(ErrValidation, "comment text is required")
	ErrCommentTooLong    = NewError(ErrValidation, "comment text too long (max 500 characters)")
	ErrCommentNotAllowed = NewError(ErrForbidden, "you cannot comment on this post")
	ErrParentMismatch    = NewError(ErrValidation, "parent comment does not belong to this post")
)
