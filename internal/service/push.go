package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"scoop_backend/internal/metrics"
	"scoop_backend/internal/model"
	"scoop_backend/internal/queue"
	"scoop_backend/internal/repository"
)

// PushMessage is what a device shows for one notification.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushSender delivers a message to a set of device tokens of one provider.
// It returns tokens the provider rejected as permanently invalid.
type PushSender interface {
	Provider() string
	Send(ctx context.Context, tokens []string, msg PushMessage) (invalid []string, err error)
}

// PushService owns device tokens and fans a message out to Expo and FCM.
type PushService struct {
	tokenRepo repository.DeviceTokenRepository
	expo      PushSender
	fcm       PushSender
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPushService builds the delivery service. expo or fcm may be nil when not configured.
func NewPushService(
	tokenRepo repository.DeviceTokenRepository,
	expo PushSender,
	fcm PushSender,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PushService {
	return &PushService{
		tokenRepo: tokenRepo,
		expo:      expo,
		fcm:       fcm,
		metrics:   m,
		logger:    logger.Named("push"),
	}
}

// RegisterToken stores a device token for userID. Platform defaults from the token shape.
func (s *PushService) RegisterToken(ctx context.Context, userID string, req model.RegisterTokenRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return model.Validationf("token is required")
	}
	platform := req.Platform
	if platform == "" {
		if model.IsExpoToken(token) {
			platform = model.PlatformExpo
		} else {
			platform = model.PlatformAndroid
		}
	}
	return s.tokenRepo.Upsert(ctx, userID, token, platform)
}

// RemoveToken forgets a device token (logout).
func (s *PushService) RemoveToken(ctx context.Context, userID, token string) error {
	if strings.TrimSpace(token) == "" {
		return model.Validationf("token is required")
	}
	return s.tokenRepo.Delete(ctx, userID, token)
}

// RemoveAll forgets every device token of userID. Used by account deletion.
func (s *PushService) RemoveAll(ctx context.Context, userID string) model.Outcome {
	const step = "push_tokens"
	tokens, err := s.tokenRepo.GetByUserID(ctx, userID)
	if err != nil {
		return model.Failed(step, err)
	}
	var errs []error
	for _, t := range tokens {
		if err := s.tokenRepo.Delete(ctx, userID, t.Token); err != nil {
			errs = append(errs, err)
		}
	}
	return model.Failed(step, errors.Join(errs...))
}

// Deliver sends msg to all of targetID's devices. Tokens reported invalid are removed.
func (s *PushService) Deliver(ctx context.Context, targetID string, msg PushMessage) model.Outcome {
	const step = "push_deliver"

	tokens, err := s.tokenRepo.GetByUserID(ctx, targetID)
	if err != nil {
		return model.Failed(step, fmt.Errorf("load device tokens: %w", err))
	}
	if len(tokens) == 0 {
		return model.Skip(step)
	}

	var expoTokens, fcmTokens []string
	for _, t := range tokens {
		if model.IsExpoToken(t.Token) {
			expoTokens = append(expoTokens, t.Token)
		} else {
			fcmTokens = append(fcmTokens, t.Token)
		}
	}

	var errs []error
	for _, batch := range []struct {
		sender PushSender
		tokens []string
	}{{s.expo, expoTokens}, {s.fcm, fcmTokens}} {
		if len(batch.tokens) == 0 || batch.sender == nil {
			continue
		}
		invalid, err := batch.sender.Send(ctx, batch.tokens, msg)
		if err != nil {
			s.metrics.PushDelivery(batch.sender.Provider(), "error")
			errs = append(errs, fmt.Errorf("%s: %w", batch.sender.Provider(), err))
		} else {
			s.metrics.PushDelivery(batch.sender.Provider(), "ok")
		}
		for _, token := range invalid {
			if err := s.tokenRepo.Delete(ctx, targetID, token); err != nil {
				s.logger.Warn("failed to remove invalid token", zap.String("user_id", targetID), zap.Error(err))
			}
		}
	}
	return model.Failed(step, errors.Join(errs...))
}

// PushDispatcher hands a freshly created notification to push delivery.
// Dispatch must not block on the delivery itself.
type PushDispatcher interface {
	Dispatch(ctx context.Context, n *model.Notification, msg PushMessage) model.Outcome
}

// QueueDispatcher publishes push events to the Redis stream consumed by `scoop worker`.
type QueueDispatcher struct {
	publisher queue.Publisher
}

func NewQueueDispatcher(publisher queue.Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, n *model.Notification, msg PushMessage) model.Outcome {
	event := queue.NewNotificationCreatedEvent(n.ID, n.Type, n.TargetID, n.SourceID, msg.Title, msg.Body, msg.Data)
	if _, err := d.publisher.Publish(ctx, queue.StreamPush, event); err != nil {
		return model.Failed("push_enqueue", err)
	}
	return model.Done("push_enqueue")
}

// DirectDispatcher delivers in a background goroutine. Used when Redis is not configured.
type DirectDispatcher struct {
	push    *PushService
	timeout time.Duration
	logger  *zap.Logger
}

func NewDirectDispatcher(push *PushService, logger *zap.Logger) *DirectDispatcher {
	return &DirectDispatcher{push: push, timeout: 15 * time.Second, logger: logger.Named("push_direct")}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, n *model.Notification, msg PushMessage) model.Outcome {
	// the request context ends with the response; delivery must outlive it
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer cancel()
		d.push.Deliver(bg, n.TargetID, msg).Log(d.logger, zap.String("notification_id", n.ID))
	}()
	return model.Done("push_dispatch")
}

// pushMessageFor builds the device text for a notification.
func pushMessageFor(n *model.Notification, sourceHandle string) PushMessage {
	actor := sourceHandle
	if actor == "" {
		actor = "Someone"
	}
	var title, body string
	switch n.Type {
	case model.NotificationTypeFollow:
		title, body = "New Follower", actor+" started following you"
	case model.NotificationTypeFollowRequest:
		title, body = "Follow Request", actor+" wants to follow you"
	case model.NotificationTypeFollowAccept:
		title, body = "Request Accepted", actor+" accepted your follow request"
	case model.NotificationTypeFollowDeclined:
		title, body = "Request Declined", actor+" declined your follow request"
	case model.NotificationTypeMention:
		title, body = "New Mention", actor+" mentioned you"
	case model.NotificationTypeComment:
		title, body = "New Comment", actor+" commented on your post"
	case model.NotificationTypeReply:
		title, body = "New Reply", actor+" replied to your comment"
	case model.NotificationTypeReaction:
		title, body = "New Reaction", actor+" reacted to your post"
	default:
		title, body = "Scoop", "You have a new notification"
	}
	data := map[string]string{
		"type":            n.Type,
		"notification_id": n.ID,
		"source_id":       n.SourceID,
	}
	if n.PostID != "" {
		data["post_id"] = n.PostID
	}
	if n.ContentID != "" {
		data["content_id"] = n.ContentID
	}
	return PushMessage{Title: title, Body: body, Data: data}
}
