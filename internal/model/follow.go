package model

import "time"

// Follow is a directed edge follower -> followee. Existence is the only state.
type Follow struct {
	FollowerID string    `json:"followerId"`
	FolloweeID string    `json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Block is a directed edge blocker -> blocked.
type Block struct {
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TargetRequest identifies the other party of a relationship operation.
// Either UserID or Handle must be set.
type TargetRequest struct {
	UserID string `json:"userId" validate:"required_without=Handle"`
	Handle string `json:"handle" validate:"required_without=UserID"`
}

// AckResponse is the boolean-flavored ack returned by relationship endpoints.
type AckResponse struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
}

// Relationship states reported in acks.
const (
	StateFollowing      = "following"
	StateNotFollowing   = "not_following"
	StateRequested      = "requested"
	StateRequestRemoved = "request_removed"
	StateBlocked        = "blocked"
	StateUnblocked      = "unblocked"
)

// UserListResponse is returned by follower/following/blocked listings.
type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Count int           `json:"count"`
}

var (
	ErrCannotFollowSelf  = NewError(ErrValidation, "cannot follow yourself")
	ErrCannotBlockSelf   = NewError(ErrValidation, "cannot block yourself")
	ErrCannotRequestSelf = NewError(ErrValidation, "cannot request to follow yourself")
	ErrBlocked           = NewError(ErrForbidden, "action not allowed between these users")
	ErrNoPendingRequest  = NewError(ErrNotFound, "no pending follow request")
	ErrProfilePrivate    = NewError(ErrForbidden, "this profile is private")
)
