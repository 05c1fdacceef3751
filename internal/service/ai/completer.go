package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	"github.com/zhouzirui/z-analyst/backend/internal/config"
)

// GenerationConfig carries the per-call generation parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxTokens"`
	ModelID         string  `json:"model"`
	Endpoint        string  `json:"endpoint"`
}

// DefaultGeneration derives the session defaults from service configuration.
func DefaultGeneration(cfg config.AIConfig) GenerationConfig {
	return GenerationConfig{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxTokens,
		ModelID:         cfg.Model,
		Endpoint:        cfg.BaseURL,
	}
}

// Validate checks the documented parameter ranges.
func (g GenerationConfig) Validate() error {
	if g.Temperature < config.MinTemperature || g.Temperature > config.MaxTemperature {
		return fmt.Errorf("temperature %.2f out of range [%.1f, %.1f]", g.Temperature, config.MinTemperature, config.MaxTemperature)
	}
	if g.MaxOutputTokens < config.MinMaxTokens || g.MaxOutputTokens > config.MaxMaxTokens {
		return fmt.Errorf("maxTokens %d out of range [%d, %d]", g.MaxOutputTokens, config.MinMaxTokens, config.MaxMaxTokens)
	}
	if strings.TrimSpace(g.ModelID) == "" {
		return errors.New("model is required")
	}
	if strings.TrimSpace(g.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	return nil
}

// CompletionRequest is one blocking exchange with a completion service.
type CompletionRequest struct {
	Messages []*schema.Message
	Config   GenerationConfig
	APIKey   string
}

// Completer sends an ordered message list to a remote model and returns the generated
// text. Implementations must fail with apperr.CodeMissingCredential before any I/O when
// APIKey is empty, never retry, and report remote failures as apperr.CodeAPI.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TransportError classifies an adapter failure; deadline expiry becomes "timeout".
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.API("timeout", err)
	}
	return apperr.API(err.Error(), err)
}

// ChatModelFactory builds an eino chat model for one request.
type ChatModelFactory func(ctx context.Context, cfg *ark.ChatModelConfig) (model.BaseChatModel, error)

func newArkChatModel(ctx context.Context, cfg *ark.ChatModelConfig) (model.BaseChatModel, error) {
	cm, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// ArkCompleter talks to Volcengine Ark through the eino ark chat model. A model is
// built per call because endpoint, model and credential are per-call inputs.
type ArkCompleter struct {
	region  string
	factory ChatModelFactory
}

// NewArkCompleter creates a Completer backed by eino-ext ark.
func NewArkCompleter(region string) *ArkCompleter {
	return &ArkCompleter{region: region, factory: newArkChatModel}
}

// WithFactory swaps the model constructor; used by tests.
func (a *ArkCompleter) WithFactory(factory ChatModelFactory) *ArkCompleter {
	a.factory = factory
	return a
}

// Complete implements Completer.
func (a *ArkCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", apperr.MissingCredential()
	}

	temperature := float32(req.Config.Temperature)
	maxTokens := req.Config.MaxOutputTokens
	cm, err := a.factory(ctx, &ark.ChatModelConfig{
		BaseURL:     req.Config.Endpoint,
		Region:      a.region,
		APIKey:      req.APIKey,
		Model:       req.Config.ModelID,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", apperr.API(err.Error(), err)
	}

	msg, err := cm.Generate(ctx, req.Messages)
	if err != nil {
		return "", TransportError(err)
	}
	if msg == nil {
		return "", apperr.API("empty response from model", nil)
	}
	return msg.Content, nil
}
