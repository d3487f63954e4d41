package model

import "time"

// MaxLiveInvites caps unused invite codes per user.
const MaxLiveInvites = 5

// InviteCodeLength is the number of characters in a generated code.
const InviteCodeLength = 8

// Invite is a single-use code a user can share.
type Invite struct {
	Code      string     `json:"code"`
	OwnerID   string     `json:"ownerId"`
	Status    string     `json:"status"`
	UsedBy    string     `json:"usedBy,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Invite statuses
const (
	InviteStatusLive = "live"
	InviteStatusUsed = "used"
)

// IsUsed reports whether the code was redeemed.
func (i *Invite) IsUsed() bool { return i.Status == InviteStatusUsed }

// RedeemInviteRequest is the body of POST /invites/redeem.
type RedeemInviteRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// InviteListResponse is returned by GET /invites.
type InviteListResponse struct {
	Invites []Invite `json:"invites"`
	Live    int      `json:"live"`
}

var (
	ErrInviteLimit    = NewError(ErrConflict, "invite limit reached")
	ErrInviteNotFound = NewError(ErrNotFound, "invite code not found")
	ErrInviteUsed     = NewError(ErrConflict, "invite code already used")
	ErrOwnInvite      = NewError(ErrValidation, "cannot redeem your own invite")
)
