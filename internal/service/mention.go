package service

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
)

// An @handle token must not be glued to a preceding word character (emails).
var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_@])@([A-Za-z0-9_]{3,20})\b`)

// ExtractMentions returns the distinct normalized handles mentioned in text, in order.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		handles = append(handles, model.NormalizeHandle(m[1]))
	}
	return dedupe(handles)
}

// mentionNotifier turns @handle tokens into mention notifications.
type mentionNotifier struct {
	users         *UserService
	notifications *NotificationService
	logger        *zap.Logger
}

// notify creates one mention notification per resolvable handle in text.
// Self-mentions and unknown handles are skipped. It returns the ids notified.
func (m *mentionNotifier) notify(ctx context.Context, sourceID, text, contentID, postID string) []string {
	var notified []string
	for _, handle := range ExtractMentions(text) {
		targetID, err := m.users.ResolveHandle(ctx, handle)
		if err != nil {
			if !model.IsUserNotFound(err) {
				m.logger.Warn("failed to resolve mention", zap.String("handle", handle), zap.Error(err))
			}
			continue
		}
		if targetID == sourceID {
			continue
		}
		outcome := m.notifications.CreateBestEffort(ctx, model.NewNotification{
			TargetID:  targetID,
			Type:      model.NotificationTypeMention,
			SourceID:  sourceID,
			ContentID: contentID,
			PostID:    postID,
			Message:   "mentioned you",
		})
		outcome.Log(m.logger, zap.String("content_id", contentID))
		if outcome.OK() {
			notified = append(notified, targetID)
		}
	}
	return notified
}

// mentionedIDs resolves the handles in text to user ids, ignoring unknown ones.
func (m *mentionNotifier) mentionedIDs(ctx context.Context, text string) []string {
	var ids []string
	for _, handle := range ExtractMentions(text) {
		if id, err := m.users.ResolveHandle(ctx, handle); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
