package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/queue"
	"scoop_backend/internal/service"
)

// Deliverer sends one push message to every registered device of a user.
// *service.PushService satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, targetID string, msg service.PushMessage) model.Outcome
}

// Handler processes push events from the queue.
type Handler struct {
	deliverer Deliverer
	logger    *zap.Logger
}

// NewHandler creates a new event handler.
func NewHandler(deliverer Deliverer, logger *zap.Logger) *Handler {
	return &Handler{deliverer: deliverer, logger: logger.Named("push_handler")}
}

// HandleEvent routes an event to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, event queue.PushEvent) error {
	switch event.Type {
	case queue.EventNotificationCreated:
		return h.handleNotificationCreated(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// handleNotificationCreated delivers the notification to the target's devices.
// A target with no devices is not an error.
func (h *Handler) handleNotificationCreated(ctx context.Context, event queue.PushEvent) error {
	if event.TargetID == "" {
		return fmt.Errorf("notification %s: missing target", event.NotificationID)
	}

	out := h.deliverer.Deliver(ctx, event.TargetID, service.PushMessage{
		Title: event.Title,
		Body:  event.Body,
		Data:  event.Data,
	})
	out.Log(h.logger,
		zap.String("notification_id", event.NotificationID),
		zap.String("notification_type", event.NotificationType),
		zap.String("target_id", event.TargetID),
	)
	if !out.OK() {
		return fmt.Errorf("deliver notification %s: %w", event.NotificationID, out.Err)
	}
	return nil
}
