package store

import (
	"fmt"
	"strings"
	"time"
)

// Sort-key and partition prefixes. Every key in the table is built here so the
// read and write paths cannot drift apart.
const (
	PrefixUser      = "USER#"
	PrefixHandle    = "HANDLE#"
	PrefixPost      = "POST#"
	PrefixComment   = "COMMENT#"
	PrefixInvite    = "INVITE#"
	PrefixScoop     = "SCOOP#"
	PrefixReport    = "REPORT#"
	PrefixFollows   = "FOLLOWS#"
	PrefixFollower  = "FOLLOWER#"
	PrefixBlocks    = "BLOCKS#"
	PrefixBlockedBy = "BLOCKEDBY#"
	PrefixReaction  = "REACTION#"
	PrefixReactCnt  = "REACTCOUNT#"
	PrefixNotif     = "NOTIF#"
	PrefixToken     = "TOKEN#"
	PrefixViewer    = "VIEWER#"

	SKProfile = "PROFILE"
	SKOwner   = "OWNER"
	SKMeta    = "META"

	PKHandles = "HANDLES"
	PKPosts   = "POSTS"
)

// TS13 renders t as zero-padded unix milliseconds so lexical order is chronological.
func TS13(t time.Time) string {
	return fmt.Sprintf("%013d", t.UnixMilli())
}

// ParseTS13 is the inverse of TS13.
func ParseTS13(s string) (time.Time, error) {
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return time.Time{}, fmt.Errorf("parse ts13 %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Suffix returns s with prefix removed, and whether the prefix was present.
func Suffix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// LastSegment returns the part after the final '#'.
func LastSegment(s string) string {
	if i := strings.LastIndexByte(s, '#'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func UserPK(id string) string     { return PrefixUser + id }
func PostPK(id string) string     { return PrefixPost + id }
func ScoopPK(id string) string    { return PrefixScoop + id }
func HandlePK(h string) string    { return PrefixHandle + h }
func CommentPK(id string) string  { return PrefixComment + id }
func InvitePK(code string) string { return PrefixInvite + code }

// ReportPK groups all reports about one piece of content.
func ReportPK(contentType, contentID string) string {
	return PrefixReport + contentType + "#" + contentID
}

func UserKey(id string) Key           { return Key{PK: UserPK(id), SK: SKProfile} }
func HandleKey(h string) Key          { return Key{PK: HandlePK(h), SK: SKOwner} }
func HandleIndexKey(h string) Key     { return Key{PK: PKHandles, SK: h} }
func PostKey(id string) Key           { return Key{PK: PostPK(id), SK: SKMeta} }
func CommentPointerKey(id string) Key { return Key{PK: CommentPK(id), SK: SKMeta} }
func InviteKey(code string) Key       { return Key{PK: InvitePK(code), SK: SKMeta} }
func ScoopKey(id string) Key          { return Key{PK: ScoopPK(id), SK: SKMeta} }

// FollowKey is the forward edge stored in the follower's partition.
func FollowKey(follower, followee string) Key {
	return Key{PK: UserPK(follower), SK: PrefixFollows + followee}
}

// FollowerKey is the reverse edge stored in the followee's partition.
func FollowerKey(followee, follower string) Key {
	return Key{PK: UserPK(followee), SK: PrefixFollower + follower}
}

func BlockKey(blocker, blocked string) Key {
	return Key{PK: UserPK(blocker), SK: PrefixBlocks + blocked}
}

func BlockedByKey(blocked, blocker string) Key {
	return Key{PK: UserPK(blocked), SK: PrefixBlockedBy + blocker}
}

func TimelineKey(author string, createdAt time.Time, postID string) Key {
	return Key{PK: UserPK(author), SK: PrefixPost + TS13(createdAt) + "#" + postID}
}

func GlobalPostKey(createdAt time.Time, postID string) Key {
	return Key{PK: PKPosts, SK: TS13(createdAt) + "#" + postID}
}

func CommentKey(postID string, createdAt time.Time, commentID string) Key {
	return Key{PK: PostPK(postID), SK: PrefixComment + TS13(createdAt) + "#" + commentID}
}

func ReactionKey(postID, userID string) Key {
	return Key{PK: PostPK(postID), SK: PrefixReaction + userID}
}

func ReactionCountKey(postID, emoji string) Key {
	return Key{PK: PostPK(postID), SK: PrefixReactCnt + emoji}
}

func NotificationKey(target string, createdAt time.Time, id string) Key {
	return Key{PK: UserPK(target), SK: PrefixNotif + TS13(createdAt) + "#" + id}
}

func TokenKey(userID, token string) Key {
	return Key{PK: UserPK(userID), SK: PrefixToken + token}
}

func InviteOwnerKey(userID, code string) Key {
	return Key{PK: UserPK(userID), SK: PrefixInvite + code}
}

func ScoopAuthorKey(author string, createdAt time.Time, id string) Key {
	return Key{PK: UserPK(author), SK: PrefixScoop + TS13(createdAt) + "#" + id}
}

func ScoopViewerKey(scoopID, viewer string) Key {
	return Key{PK: ScoopPK(scoopID), SK: PrefixViewer + viewer}
}

func ReportKey(contentType, contentID string, createdAt time.Time, id string) Key {
	return Key{PK: ReportPK(contentType, contentID), SK: TS13(createdAt) + "#" + id}
}
