package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the push stream
const (
	EventNotificationCreated = "notification_created"
)

// Stream names
const (
	StreamPush = "stream:push"
)

// Consumer group name for push workers
const (
	ConsumerGroupPush = "push_workers"
)

// PushEvent asks a worker to deliver one notification to every device of TargetID.
type PushEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	NotificationID   string            `json:"notification_id"`
	NotificationType string            `json:"notification_type"`
	TargetID         string            `json:"target_id"`
	SourceID         string            `json:"source_id,omitempty"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	Data             map[string]string `json:"data,omitempty"`
}

// NewNotificationCreatedEvent builds the event published after a ledger write.
func NewNotificationCreatedEvent(notificationID, notificationType, targetID, sourceID, title, body string, data map[string]string) PushEvent {
	return PushEvent{
		Type:             EventNotificationCreated,
		Timestamp:        time.Now().Unix(),
		NotificationID:   notificationID,
		NotificationType: notificationType,
		TargetID:         targetID,
		SourceID:         sourceID,
		Title:            title,
		Body:             body,
		Data:             data,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e PushEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParsePushEvent parses a PushEvent from Redis stream message values.
func ParsePushEvent(values map[string]interface{}) (PushEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return PushEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event PushEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return PushEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
