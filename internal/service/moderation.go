package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"scoop_backend/internal/metrics"
	"scoop_backend/internal/model"
)

// ModerationVerdict is the gate's decision for one piece of content.
type ModerationVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// Classifier scores text and/or an image. Either input may be empty.
type Classifier interface {
	Classify(ctx context.Context, text, imageURL string) (ModerationVerdict, error)
}

// ImageURLResolver turns an object key into a URL the classifier can fetch.
type ImageURLResolver interface {
	PublicURL(key string) string
}

// ModerationService gates writes. It fails open: if the classifier errors,
// times out or answers nonsense, the content is allowed.
type ModerationService struct {
	classifier Classifier       // nil disables moderation
	images     ImageURLResolver // nil skips image checks
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewModerationService(classifier Classifier, images ImageURLResolver, m *metrics.Metrics, logger *zap.Logger) *ModerationService {
	return &ModerationService{
		classifier: classifier,
		images:     images,
		timeout:    8 * time.Second,
		metrics:    m,
		logger:     logger.Named("moderation"),
	}
}

// Moderate classifies text and each image key. The first unsafe verdict wins.
func (s *ModerationService) Moderate(ctx context.Context, text string, imageKeys ...string) ModerationVerdict {
	if s == nil || s.classifier == nil {
		return ModerationVerdict{Safe: true}
	}
	text = strings.TrimSpace(text)

	var urls []string
	if s.images != nil {
		for _, key := range imageKeys {
			if key != "" {
				urls = append(urls, s.images.PublicURL(key))
			}
		}
	}
	if text == "" && len(urls) == 0 {
		return ModerationVerdict{Safe: true}
	}

	// text goes with the first image, remaining images alone
	calls := []struct{ text, url string }{{text: text}}
	if len(urls) > 0 {
		calls[0].url = urls[0]
		for _, u := range urls[1:] {
			calls = append(calls, struct{ text, url string }{url: u})
		}
	}

	for _, c := range calls {
		verdict, err := s.classify(ctx, c.text, c.url)
		if err != nil {
			s.metrics.ModerationDecision("fail_open")
			s.logger.Warn("classifier failed, allowing content", zap.Error(err))
			continue
		}
		if !verdict.Safe {
			s.metrics.ModerationDecision("blocked")
			return verdict
		}
	}
	s.metrics.ModerationDecision("allowed")
	return ModerationVerdict{Safe: true}
}

func (s *ModerationService) classify(ctx context.Context, text, url string) (verdict ModerationVerdict, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return s.classifier.Classify(ctx, text, url)
}

// Check returns a *model.ModerationError when the content is blocked.
func (s *ModerationService) Check(ctx context.Context, text string, imageKeys ...string) error {
	verdict := s.Moderate(ctx, text, imageKeys...)
	if verdict.Safe {
		return nil
	}
	return &model.ModerationError{Reason: verdict.Reason}
}

// openAIAPI is the subset of *openai.Client used by the classifier.
type openAIAPI interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClassifier uses the moderation endpoint for text and a vision chat
// completion for images.
type OpenAIClassifier struct {
	client openAIAPI
	model  string
}

func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	return &OpenAIClassifier{client: openai.NewClient(apiKey), model: model}
}

const imageModerationPrompt = `You are a content moderator for a social app. Decide whether the image is safe to publish.
Unsafe means sexual content, graphic violence, hate symbols, self-harm or illegal activity.
Answer only with JSON: {"safe": true|false, "reason": "<short reason when unsafe>"}`

var errMalformedVerdict = errors.New("malformed classifier response")

func (c *OpenAIClassifier) Classify(ctx context.Context, text, imageURL string) (ModerationVerdict, error) {
	if text != "" {
		verdict, err := c.classifyText(ctx, text)
		if err != nil || !verdict.Safe {
			return verdict, err
		}
	}
	if imageURL != "" {
		return c.classifyImage(ctx, imageURL)
	}
	return ModerationVerdict{Safe: true}, nil
}

func (c *OpenAIClassifier) classifyText(ctx context.Context, text string) (ModerationVerdict, error) {
	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{Input: text})
	if err != nil {
		return ModerationVerdict{}, fmt.Errorf("moderation call failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return ModerationVerdict{}, errMalformedVerdict
	}
	result := resp.Results[0]
	if !result.Flagged {
		return ModerationVerdict{Safe: true}, nil
	}
	return ModerationVerdict{Safe: false, Reason: flaggedCategories(result.Categories)}, nil
}

// flaggedCategories lists the true category flags by their wire names.
func flaggedCategories(categories any) string {
	raw, err := json.Marshal(categories)
	if err != nil {
		return "flagged"
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		return "flagged"
	}
	var names []string
	for name, on := range flags {
		if on {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "flagged"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (c *OpenAIClassifier) classifyImage(ctx context.Context, imageURL string) (ModerationVerdict, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: imageModerationPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    imageURL,
					Detail: openai.ImageURLDetailLow,
				}},
			}},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		MaxTokens:      100,
	})
	if err != nil {
		return ModerationVerdict{}, fmt.Errorf("vision call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ModerationVerdict{}, errMalformedVerdict
	}
	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict requires an explicit "safe" field; anything else is malformed.
func parseVerdict(content string) (ModerationVerdict, error) {
	var raw struct {
		Safe   *bool  `json:"safe"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil || raw.Safe == nil {
		return ModerationVerdict{}, errMalformedVerdict
	}
	if *raw.Safe {
		return ModerationVerdict{Safe: true}, nil
	}
	reason := raw.Reason
	if reason == "" {
		reason = "image flagged"
	}
	return ModerationVerdict{Safe: false, Reason: reason}, nil
}
