package openai

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	"github.com/zhouzirui/z-analyst/backend/internal/service/ai"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ModelFactory builds an eino chat model for one request.
type ModelFactory func(ctx context.Context, cfg *einoopenai.ChatModelConfig) (model.BaseChatModel, error)

func newChatModel(ctx context.Context, cfg *einoopenai.ChatModelConfig) (model.BaseChatModel, error) {
	cm, err := einoopenai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// Client is an OpenAI-compatible chat completions adapter. Endpoint, model and
// credential arrive with every request, so the eino model is built per call and one
// Client serves all sessions.
type Client struct {
	httpClient *http.Client
	factory    ModelFactory
	log        zerolog.Logger
}

var _ ai.Completer = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithFactory swaps the model constructor; used by tests.
func WithFactory(factory ModelFactory) Option {
	return func(c *Client) {
		c.factory = factory
	}
}

// NewClient creates a Client. Request deadlines come from the caller's context.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		factory:    newChatModel,
		log:        logging.Component("openai"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// baseURL normalises an endpoint to the API root the chat model appends
// /chat/completions to. A bare host gets /v1.
func baseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	if base == "" {
		return defaultBaseURL
	}
	if u, err := url.Parse(base); err == nil && u.Host != "" && u.Path == "" {
		return base + "/v1"
	}
	return base
}

// Complete implements ai.Completer with a single blocking chat completion.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return "", apperr.MissingCredential()
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		c.log.Warn().Msg("API key does not start with sk-, sending it anyway")
	}
	if req.Config.ModelID == "" {
		return "", apperr.API("model must not be empty", nil)
	}

	temperature := float32(req.Config.Temperature)
	maxTokens := req.Config.MaxOutputTokens
	cm, err := c.factory(ctx, &einoopenai.ChatModelConfig{
		APIKey:      apiKey,
		HTTPClient:  c.httpClient,
		BaseURL:     baseURL(req.Config.Endpoint),
		Model:       req.Config.ModelID,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", apperr.API(err.Error(), err)
	}

	msg, err := cm.Generate(ctx, req.Messages)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.API("timeout", err)
		}
		return "", ai.TransportError(err)
	}
	if msg == nil {
		return "", apperr.API("empty response from model", nil)
	}
	return msg.Content, nil
}
