package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

// Notification list bounds
const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 100
)

// NotificationService is the per-user notification ledger.
type NotificationService struct {
	notifRepo  repository.NotificationRepository
	userRepo   repository.UserRepository
	users      *UserService
	dispatcher PushDispatcher // nil disables push
	logger     *zap.Logger
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	users *UserService,
	dispatcher PushDispatcher,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifRepo:  notifRepo,
		userRepo:   userRepo,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
	}
}

// Create appends a notification to the target's ledger. It returns (nil, nil)
// when nothing was written: the target is the source, or the target turned
// that notification type off. Push delivery is triggered afterwards and never
// fails the write.
func (s *NotificationService) Create(ctx context.Context, in model.NewNotification) (*model.Notification, error) {
	if !model.IsValidNotificationType(in.Type) {
		return nil, model.ErrInvalidNotificationType
	}
	if in.TargetID == "" || in.SourceID == "" {
		return nil, model.ErrMissingUserID
	}
	if in.TargetID == in.SourceID {
		return nil, nil
	}
	if model.IsPreferenceGated(in.Type) && !s.allows(ctx, in.TargetID, in.Type) {
		return nil, nil
	}

	n := &model.Notification{
		ID:        uuid.NewString(),
		TargetID:  in.TargetID,
		Type:      in.Type,
		SourceID:  in.SourceID,
		ContentID: in.ContentID,
		PostID:    in.PostID,
		Message:   in.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.push(ctx, n).Log(s.logger, zap.String("notification_id", n.ID), zap.String("target_id", n.TargetID))
	return n, nil
}

// allows consults the target's preferences. A failed lookup allows delivery.
func (s *NotificationService) allows(ctx context.Context, targetID, notifType string) bool {
	target, err := s.userRepo.Get(ctx, targetID)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			s.logger.Warn("preference lookup failed, allowing", zap.String("target_id", targetID), zap.Error(err))
		}
		return true
	}
	prefs := target.Notifications
	switch notifType {
	case model.NotificationTypeMention:
		return prefs.MentionsEnabled()
	case model.NotificationTypeComment, model.NotificationTypeReply:
		return prefs.CommentsEnabled()
	case model.NotificationTypeReaction:
		return prefs.ReactionsEnabled()
	}
	return true
}

func (s *NotificationService) push(ctx context.Context, n *model.Notification) model.Outcome {
	if s.dispatcher == nil {
		return model.Skip("push")
	}
	var handle string
	if sums, err := s.users.ResolveSummaries(ctx, []string{n.SourceID}); err == nil {
		handle = sums[n.SourceID].Handle
	}
	return s.dispatcher.Dispatch(ctx, n, pushMessageFor(n, handle))
}

// CreateBestEffort runs Create as a side effect of another write.
func (s *NotificationService) CreateBestEffort(ctx context.Context, in model.NewNotification) model.Outcome {
	_, err := s.Create(ctx, in)
	return model.Failed("notify_"+in.Type, err)
}

// HasMatching reports whether the target's ledger holds an entry matching m.
func (s *NotificationService) HasMatching(ctx context.Context, m model.NotificationMatch) (bool, error) {
	list, err := s.notifRepo.List(ctx, m.TargetID, 0)
	if err != nil {
		return false, err
	}
	for i := range list {
		if m.Matches(&list[i]) {
			return true, nil
		}
	}
	return false, nil
}

// DeleteMatching removes every entry matching m and returns how many went.
// Zero matches is not an error.
func (s *NotificationService) DeleteMatching(ctx context.Context, m model.NotificationMatch) (int, error) {
	list, err := s.notifRepo.List(ctx, m.TargetID, 0)
	if err != nil {
		return 0, err
	}
	deleted := 0
	var errs []error
	for i := range list {
		if !m.Matches(&list[i]) {
			continue
		}
		if err := s.notifRepo.Delete(ctx, &list[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// DeleteMatchingBestEffort wraps DeleteMatching as a side effect.
func (s *NotificationService) DeleteMatchingBestEffort(ctx context.Context, m model.NotificationMatch) model.Outcome {
	_, err := s.DeleteMatching(ctx, m)
	return model.Failed("unnotify_"+m.Type, err)
}

// List returns the newest notifications with their source users hydrated.
// With markRead, the returned entries keep their previous read state and the
// stored ones are marked read afterwards.
func (s *NotificationService) List(ctx context.Context, userID string, limit int, markRead bool) (*model.NotificationListResponse, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}

	list, err := s.notifRepo.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	sourceIDs := make([]string, 0, len(list))
	unread := 0
	for i := range list {
		sourceIDs = append(sourceIDs, list[i].SourceID)
		if !list[i].Read {
			unread++
		}
	}

	sums, err := s.users.ResolveSummaries(ctx, sourceIDs)
	if err != nil {
		s.logger.Warn("failed to hydrate notification sources", zap.String("user_id", userID), zap.Error(err))
	}
	for i := range list {
		if sum, ok := sums[list[i].SourceID]; ok {
			list[i].Source = &sum
		}
	}

	if markRead {
		for i := range list {
			if list[i].Read {
				continue
			}
			if err := s.notifRepo.MarkRead(ctx, &list[i]); err != nil {
				s.logger.Warn("failed to mark notification read", zap.String("notification_id", list[i].ID), zap.Error(err))
			}
		}
	}

	return &model.NotificationListResponse{Notifications: list, UnreadCount: unread}, nil
}

// DeleteReceived removes the user's whole ledger.
func (s *NotificationService) DeleteReceived(ctx context.Context, userID string) model.Outcome {
	const step = "notifications_received"
	list, err := s.notifRepo.List(ctx, userID, 0)
	if err != nil {
		return model.Failed(step, err)
	}
	return model.Failed(step, s.deleteAll(ctx, list))
}

// DeleteSent removes every notification the user caused in other ledgers.
func (s *NotificationService) DeleteSent(ctx context.Context, userID string) model.Outcome {
	const step = "notifications_sent"
	list, err := s.notifRepo.ListBySource(ctx, userID)
	if err != nil {
		return model.Failed(step, err)
	}
	return model.Failed(step, s.deleteAll(ctx, list))
}

// DeleteForContent removes the notifications pointing at a post, comment or scoop.
func (s *NotificationService) DeleteForContent(ctx context.Context, targetIDs []string, contentID string) model.Outcome {
	const step = "notifications_content"
	var errs []error
	for _, target := range dedupe(targetIDs) {
		list, err := s.notifRepo.List(ctx, target, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", target, err))
			continue
		}
		var matched []model.Notification
		for _, n := range list {
			if n.ContentID == contentID || n.PostID == contentID {
				matched = append(matched, n)
			}
		}
		if err := s.deleteAll(ctx, matched); err != nil {
			errs = append(errs, err)
		}
	}
	return model.Failed(step, errors.Join(errs...))
}

func (s *NotificationService) deleteAll(ctx context.Context, list []model.Notification) error {
	var errs []error
	for i := range list {
		if err := s.notifRepo.Delete(ctx, &list[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
