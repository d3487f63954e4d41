package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
)

// ExpoPushClient sends push notifications via Expo's Push API.
//
// The mobile app registers an Expo push token ("ExponentPushToken[xxx]") with
// POST /me/push-tokens; Expo relays to APNs and FCM for us, so no credentials
// are needed on this side.
type ExpoPushClient struct {
	httpClient *http.Client
	endpoint   string
	logger     *zap.Logger
}

// ExpoPushMessage is the payload for Expo's Push API.
type ExpoPushMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// ExpoPushResponse is the response from Expo's API.
type ExpoPushResponse struct {
	Data []ExpoPushTicket `json:"data"`
}

type ExpoPushTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", etc.
	} `json:"details,omitempty"`
}

const (
	expoPushURL = "https://exp.host/--/api/v2/push/send"

	// Expo accepts at most 100 messages per request.
	expoBatchSize = 100

	expoDeviceNotRegistered = "DeviceNotRegistered"
)

// NewExpoPushClient creates a new Expo Push client.
func NewExpoPushClient(logger *zap.Logger) *ExpoPushClient {
	return NewExpoPushClientWithEndpoint(expoPushURL, &http.Client{Timeout: 10 * time.Second}, logger)
}

// NewExpoPushClientWithEndpoint points the client at another endpoint (tests, self-hosted relays).
func NewExpoPushClientWithEndpoint(endpoint string, httpClient *http.Client, logger *zap.Logger) *ExpoPushClient {
	return &ExpoPushClient{httpClient: httpClient, endpoint: endpoint, logger: logger.Named("expo_push")}
}

// Provider implements PushSender.
func (c *ExpoPushClient) Provider() string { return "expo" }

// Send delivers msg to every Expo token, batching by expoBatchSize. It returns the
// tokens Expo reported as no longer registered so the caller can forget them.
func (c *ExpoPushClient) Send(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if model.IsExpoToken(token) {
			valid = append(valid, token)
		} else {
			c.logger.Debug("skipping non-expo token", zap.String("token_prefix", token[:min(20, len(token))]))
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	var invalid []string
	for start := 0; start < len(valid); start += expoBatchSize {
		batch := valid[start:min(start+expoBatchSize, len(valid))]
		bad, err := c.sendBatch(ctx, batch, msg)
		if err != nil {
			return invalid, err
		}
		invalid = append(invalid, bad...)
	}
	return invalid, nil
}

func (c *ExpoPushClient) sendBatch(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	payload, err := json.Marshal(ExpoPushMessage{
		To:       tokens,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp ExpoPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		// accepted by Expo; the tickets are only diagnostics
		c.logger.Warn("failed to parse expo response", zap.Error(err))
		return nil, nil
	}

	var invalid []string
	failed := 0
	for i, ticket := range pushResp.Data {
		if ticket.Status == "ok" {
			continue
		}
		failed++
		if ticket.Details.Error == expoDeviceNotRegistered && i < len(tokens) {
			invalid = append(invalid, tokens[i])
		}
		c.logger.Debug("expo ticket failed",
			zap.Int("index", i), zap.String("message", ticket.Message), zap.String("error", ticket.Details.Error))
	}
	c.logger.Info("expo push sent", zap.Int("tokens", len(tokens)), zap.Int("failed", failed))
	return invalid, nil
}
