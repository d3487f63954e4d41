package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
)

type fakeOpenAI struct {
	moderationsFn func(openai.ModerationRequest) (openai.ModerationResponse, error)
	chatFn        func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	chatCalls     int
}

func (f *fakeOpenAI) Moderations(_ context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error) {
	if f.moderationsFn == nil {
		return openai.ModerationResponse{Results: []openai.Result{{}}}, nil
	}
	return f.moderationsFn(req)
}

func (f *fakeOpenAI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.chatCalls++
	if f.chatFn == nil {
		return chatAnswer(`{"safe": true}`), nil
	}
	return f.chatFn(req)
}

func chatAnswer(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func TestModeration_FailsOpen(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string, string) (ModerationVerdict, error)
	}{
		{"error", func(context.Context, string, string) (ModerationVerdict, error) {
			return ModerationVerdict{}, errors.New("upstream 500")
		}},
		{"panic", func(context.Context, string, string) (ModerationVerdict, error) {
			panic("nil map")
		}},
		{"malformed", func(context.Context, string, string) (ModerationVerdict, error) {
			return ModerationVerdict{}, errMalformedVerdict
		}},
		{"deadline", func(ctx context.Context, _, _ string) (ModerationVerdict, error) {
			<-ctx.Done()
			return ModerationVerdict{}, ctx.Err()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewModerationService(&fakeClassifier{classifyFn: tt.fn}, nil, nil, zap.NewNop())
			svc.timeout = 10 * time.Millisecond
			assert.NoError(t, svc.Check(context.Background(), "some text"))
		})
	}
}

func TestModeration_DisabledAllowsEverything(t *testing.T) {
	var svc *ModerationService
	assert.True(t, svc.Moderate(context.Background(), "anything").Safe)

	svc = NewModerationService(nil, nil, nil, zap.NewNop())
	assert.NoError(t, svc.Check(context.Background(), "anything", "posts/x.jpg"))
}

func TestModeration_EmptyContentSkipsClassifier(t *testing.T) {
	classifier := &fakeClassifier{}
	svc := NewModerationService(classifier, nil, nil, zap.NewNop())

	assert.True(t, svc.Moderate(context.Background(), "   ", "posts/ignored.jpg").Safe, "no resolver means no image checks")
	assert.Zero(t, classifier.calls)
}

func TestModeration_FirstUnsafeImageBlocks(t *testing.T) {
	var seen []string
	classifier := &fakeClassifier{classifyFn: func(_ context.Context, text, url string) (ModerationVerdict, error) {
		seen = append(seen, text+"|"+url)
		if url == "https://cdn.example/posts/bad.jpg" {
			return ModerationVerdict{Safe: false, Reason: "nudity"}, nil
		}
		return ModerationVerdict{Safe: true}, nil
	}}
	svc := NewModerationService(classifier, &fakeObjectStore{}, nil, zap.NewNop())

	err := svc.Check(context.Background(), "caption", "posts/ok.jpg", "posts/bad.jpg", "posts/never.jpg")
	var modErr *model.ModerationError
	require.ErrorAs(t, err, &modErr)
	assert.Equal(t, "nudity", modErr.Reason)
	assert.Equal(t, []string{
		"caption|https://cdn.example/posts/ok.jpg",
		"|https://cdn.example/posts/bad.jpg",
	}, seen)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in      string
		want    ModerationVerdict
		wantErr bool
	}{
		{in: `{"safe": true}`, want: ModerationVerdict{Safe: true}},
		{in: ` {"safe": false, "reason": "gore"} `, want: ModerationVerdict{Safe: false, Reason: "gore"}},
		{in: `{"safe": false}`, want: ModerationVerdict{Safe: false, Reason: "image flagged"}},
		{in: `{"reason": "no verdict"}`, wantErr: true},
		{in: `not json`, wantErr: true},
		{in: ``, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseVerdict(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, errMalformedVerdict, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestOpenAIClassifier_TextFlagged(t *testing.T) {
	api := &fakeOpenAI{moderationsFn: func(req openai.ModerationRequest) (openai.ModerationResponse, error) {
		assert.Equal(t, "you are awful", req.Input)
		return openai.ModerationResponse{Results: []openai.Result{{
			Flagged:    true,
			Categories: openai.ResultCategories{Harassment: true, Hate: true},
		}}}, nil
	}}
	c := &OpenAIClassifier{client: api, model: "gpt-4o-mini"}

	verdict, err := c.Classify(context.Background(), "you are awful", "https://cdn.example/x.jpg")
	require.NoError(t, err)
	assert.False(t, verdict.Safe)
	assert.Equal(t, "harassment, hate", verdict.Reason)
	assert.Zero(t, api.chatCalls, "image is not checked once text is flagged")
}

func TestOpenAIClassifier_ImageVerdict(t *testing.T) {
	api := &fakeOpenAI{chatFn: func(req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		require.Len(t, req.Messages, 2)
		require.Len(t, req.Messages[1].MultiContent, 1)
		assert.Equal(t, "https://cdn.example/x.jpg", req.Messages[1].MultiContent[0].ImageURL.URL)
		return chatAnswer(`{"safe": false, "reason": "weapon"}`), nil
	}}
	c := &OpenAIClassifier{client: api, model: "gpt-4o-mini"}

	verdict, err := c.Classify(context.Background(), "", "https://cdn.example/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, ModerationVerdict{Safe: false, Reason: "weapon"}, verdict)
}

func TestOpenAIClassifier_MalformedAnswers(t *testing.T) {
	c := &OpenAIClassifier{client: &fakeOpenAI{
		moderationsFn: func(openai.ModerationRequest) (openai.ModerationResponse, error) {
			return openai.ModerationResponse{}, nil
		},
		chatFn: func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, nil
		},
	}}

	_, err := c.Classify(context.Background(), "text", "")
	assert.ErrorIs(t, err, errMalformedVerdict)
	_, err = c.Classify(context.Background(), "", "https://cdn.example/x.jpg")
	assert.ErrorIs(t, err, errMalformedVerdict)
}
