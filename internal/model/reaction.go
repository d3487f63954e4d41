package model

import (
	"time"
	"unicode/utf8"
)

// Reaction is one user's emoji on a post. A user has at most one per post.
type Reaction struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactionRequest is the body of POST /posts/{id}/reactions.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// ReactionSummary lists per-emoji counts and the viewer's current choice.
type ReactionSummary struct {
	Counts map[string]int64 `json:"counts"`
	Mine   string           `json:"mine,omitempty"`
}

// ReactionToggleResult reports what a toggle did.
type ReactionToggleResult struct {
	Action  string          `json:"action"`
	Summary ReactionSummary `json:"summary"`
}

// Toggle actions.
const (
	ReactionAdded    = "added"
	ReactionReplaced = "replaced"
	ReactionRemoved  = "removed"
)

// MaxEmojiRunes bounds emoji length, enough for ZWJ sequences.
const MaxEmojiRunes = 8

// ValidateEmoji rejects empty or oversized emoji strings.
func ValidateEmoji(e string) error {
	if e == "" || utf8.RuneCountInString(e) > MaxEmojiRunes {
		return ErrInvalidEmoji
	}
	return nil
}

var ErrInvalidEmoji = NewError(ErrValidation, "invalid emoji")
