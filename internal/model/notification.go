package model

import (
	"time"
)

// Notification types
const (
	NotificationTypeMention        = "mention"
	NotificationTypeComment        = "comment"
	NotificationTypeReply          = "reply"
	NotificationTypeReaction       = "reaction"
	NotificationTypeFollow         = "follow"
	NotificationTypeFollowRequest  = "follow_request"
	NotificationTypeFollowAccept   = "follow_accept"
	NotificationTypeFollowDeclined = "follow_declined"
)

// Notification is one entry in a user's ledger.
type Notification struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"targetId"`
	Type      string    `json:"type"`
	SourceID  string    `json:"sourceId"`
	ContentID string    `json:"contentId,omitempty"` // post, comment or scoop id
	PostID    string    `json:"postId,omitempty"`    // navigation target when ContentID is a comment
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`

	Source *UserSummary `json:"source,omitempty"`
}

// NewNotification is the input to the ledger's create operation.
type NewNotification struct {
	TargetID  string
	Type      string
	SourceID  string
	ContentID string
	PostID    string
	Message   string
}

// NotificationMatch selects ledger entries. Empty SourceID / ContentID match anything.
type NotificationMatch struct {
	TargetID  string
	Type      string
	SourceID  string
	ContentID string
}

// Matches reports whether n satisfies the match.
func (m NotificationMatch) Matches(n *Notification) bool {
	if n.TargetID != m.TargetID || n.Type != m.Type {
		return false
	}
	if m.SourceID != "" && n.SourceID != m.SourceID {
		return false
	}
	if m.ContentID != "" && n.ContentID != m.ContentID {
		return false
	}
	return true
}

// IsPreferenceGated reports whether delivery depends on the target's preferences.
// Follow-family types are never gated.
func IsPreferenceGated(notifType string) bool {
	switch notifType {
	case NotificationTypeMention, NotificationTypeComment, NotificationTypeReply, NotificationTypeReaction:
		return true
	}
	return false
}

// IsValidNotificationType reports whether t is a known type.
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeMention, NotificationTypeComment, NotificationTypeReply, NotificationTypeReaction,
		NotificationTypeFollow, NotificationTypeFollowRequest, NotificationTypeFollowAccept, NotificationTypeFollowDeclined:
		return true
	}
	return false
}

// NotificationListResponse is returned by GET /notifications.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

var ErrInvalidNotificationType = NewError(ErrValidation, "unknown notification type")
