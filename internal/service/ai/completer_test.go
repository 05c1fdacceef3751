package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
)

type fakeChatModel struct {
	input []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not used")
}

type factoryRecorder struct {
	calls int
	cfg   *ark.ChatModelConfig
	model *fakeChatModel
	err   error
}

func (r *factoryRecorder) build(_ context.Context, cfg *ark.ChatModelConfig) (model.BaseChatModel, error) {
	r.calls++
	r.cfg = cfg
	if r.err != nil {
		return nil, r.err
	}
	return r.model, nil
}

func arkRequest(key string) CompletionRequest {
	return CompletionRequest{
		Messages: []*schema.Message{
			schema.SystemMessage("sys"),
			schema.UserMessage("q1"),
			schema.AssistantMessage("a1", nil),
			schema.UserMessage("q2"),
		},
		Config: GenerationConfig{Temperature: 0.5, MaxOutputTokens: 2048, ModelID: "doubao-pro-32k", Endpoint: "https://ark.example.com/api/v3"},
		APIKey: key,
	}
}

func TestArkCompleterMissingCredential(t *testing.T) {
	rec := &factoryRecorder{model: &fakeChatModel{}}
	completer := NewArkCompleter("cn-beijing").WithFactory(rec.build)

	_, err := completer.Complete(context.Background(), arkRequest("  "))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.CodeMissingCredential))
	require.Zero(t, rec.calls, "no model must be built without a credential")
	require.Nil(t, rec.model.input)
}

func TestArkCompleterForwardsRequest(t *testing.T) {
	rec := &factoryRecorder{model: &fakeChatModel{reply: schema.AssistantMessage("你好", nil)}}
	completer := NewArkCompleter("cn-beijing").WithFactory(rec.build)
	req := arkRequest("ark-key")

	text, err := completer.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "你好", text)

	require.Equal(t, 1, rec.calls)
	require.Equal(t, "https://ark.example.com/api/v3", rec.cfg.BaseURL)
	require.Equal(t, "cn-beijing", rec.cfg.Region)
	require.Equal(t, "ark-key", rec.cfg.APIKey)
	require.Equal(t, "doubao-pro-32k", rec.cfg.Model)
	require.Equal(t, 2048, *rec.cfg.MaxTokens)
	require.InDelta(t, 0.5, *rec.cfg.Temperature, 1e-6)
	require.Equal(t, req.Messages, rec.model.input, "order and roles are preserved")
}

func TestArkCompleterProviderError(t *testing.T) {
	rec := &factoryRecorder{model: &fakeChatModel{err: errors.New("InvalidEndpointOrModel.NotFound")}}
	completer := NewArkCompleter("cn-beijing").WithFactory(rec.build)

	_, err := completer.Complete(context.Background(), arkRequest("ark-key"))
	require.True(t, apperr.Is(err, apperr.CodeAPI))
	require.Equal(t, "发生错误: InvalidEndpointOrModel.NotFound", apperr.Display(err))
}

func TestArkCompleterFactoryError(t *testing.T) {
	rec := &factoryRecorder{err: errors.New("bad config")}
	completer := NewArkCompleter("").WithFactory(rec.build)

	_, err := completer.Complete(context.Background(), arkRequest("ark-key"))
	require.True(t, apperr.Is(err, apperr.CodeAPI))
}

func TestArkCompleterNilReply(t *testing.T) {
	rec := &factoryRecorder{model: &fakeChatModel{}}
	completer := NewArkCompleter("").WithFactory(rec.build)

	_, err := completer.Complete(context.Background(), arkRequest("ark-key"))
	require.True(t, apperr.Is(err, apperr.CodeAPI))
}

func TestTransportErrorTimeout(t *testing.T) {
	err := TransportError(fmt.Errorf("post: %w", context.DeadlineExceeded))
	require.True(t, apperr.Is(err, apperr.CodeAPI))
	require.Equal(t, "发生错误: timeout", apperr.Display(err))

	original := apperr.MissingCredential()
	require.Same(t, original, TransportError(original))
	require.NoError(t, TransportError(nil))
}

func TestGenerationConfigValidate(t *testing.T) {
	valid := GenerationConfig{Temperature: 1.5, MaxOutputTokens: 512, ModelID: "m", Endpoint: "e"}
	require.NoError(t, valid.Validate())

	cases := []GenerationConfig{
		{Temperature: -0.1, MaxOutputTokens: 512, ModelID: "m", Endpoint: "e"},
		{Temperature: 0.7, MaxOutputTokens: 4097, ModelID: "m", Endpoint: "e"},
		{Temperature: 0.7, MaxOutputTokens: 1024, ModelID: "", Endpoint: "e"},
		{Temperature: 0.7, MaxOutputTokens: 1024, ModelID: "m", Endpoint: " "},
	}
	for _, tc := range cases {
		require.Error(t, tc.Validate(), "%+v", tc)
	}
}
