package service

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// multicastSender is the subset of *messaging.Client the FCM client needs.
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMClient wraps the Firebase Cloud Messaging client for native (non-Expo) device tokens.
//
// The messaging client comes from the same Firebase app that verifies ID tokens,
// see identity.FirebaseApp.Messaging.
type FCMClient struct {
	client multicastSender
	logger *zap.Logger
}

// FCM has a limit of 500 tokens per multicast request.
const fcmBatchSize = 500

// NewFCMClient wraps an initialized messaging client.
func NewFCMClient(client multicastSender, logger *zap.Logger) *FCMClient {
	return &FCMClient{client: client, logger: logger.Named("fcm")}
}

// Provider implements PushSender.
func (c *FCMClient) Provider() string { return "fcm" }

// Send delivers msg to every token and returns the tokens FCM reports as unregistered.
func (c *FCMClient) Send(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	var invalid []string
	for start := 0; start < len(tokens); start += fcmBatchSize {
		batch := tokens[start:min(start+fcmBatchSize, len(tokens))]
		bad, err := c.sendBatch(ctx, batch, msg)
		if err != nil {
			return invalid, err
		}
		invalid = append(invalid, bad...)
	}
	return invalid, nil
}

func (c *FCMClient) sendBatch(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high", // delivered even in battery-saving mode
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	response, err := c.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("send multicast: %w", err)
	}

	var invalid []string
	for i, resp := range response.Responses {
		if resp.Success {
			continue
		}
		if messaging.IsUnregistered(resp.Error) && i < len(tokens) {
			invalid = append(invalid, tokens[i])
		}
		c.logger.Debug("fcm token failed", zap.Int("index", i), zap.Error(resp.Error))
	}
	c.logger.Info("fcm push sent",
		zap.Int("tokens", len(tokens)), zap.Int("success", response.SuccessCount), zap.Int("failure", response.FailureCount))
	return invalid, nil
}
