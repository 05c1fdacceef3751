package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	"github.com/zhouzirui/z-analyst/backend/internal/config"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	"github.com/zhouzirui/z-analyst/backend/internal/model/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
)

// Mode 决定回答来源：普通对话或仅依据上传文档。
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeDocument Mode = "document"
)

var ErrInvalidInput = errors.New("invalid request")

// ParseMode 解析客户端传入的模式，空串视为 chat。
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeChat:
		return ModeChat, nil
	case ModeDocument:
		return ModeDocument, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, raw)
	}
}

// Overrides 是单次请求对会话默认生成参数的覆盖，零值表示沿用默认。
type Overrides struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Model       string   `json:"model,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
}

// Input 是一次用户提问。
type Input struct {
	Message   string
	Mode      Mode
	Overrides Overrides
}

// Deliver 在回复生成后被调用，用于分段推送。
type Deliver func(ctx context.Context, reply string) error

// Runner 把一次提问绑定到会话：占用会话、解析凭证与参数、调用编排器并推送结果。
type Runner struct {
	sessions *chatService.Service
	llm      *ai.Service
	defaults config.AIConfig
	log      zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(sessions *chatService.Service, llm *ai.Service, defaults config.AIConfig) *Runner {
	return &Runner{
		sessions: sessions,
		llm:      llm,
		defaults: defaults,
		log:      logging.Component("turn"),
	}
}

// Generation 合并默认值与覆盖项并校验范围。
func (r *Runner) Generation(o Overrides) (ai.GenerationConfig, error) {
	gen := ai.DefaultGeneration(r.defaults)
	if o.Temperature != nil {
		gen.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		gen.MaxOutputTokens = *o.MaxTokens
	}
	if model := strings.TrimSpace(o.Model); model != "" {
		gen.ModelID = model
	}
	if endpoint := strings.TrimSpace(o.Endpoint); endpoint != "" {
		gen.Endpoint = endpoint
	}
	if err := gen.Validate(); err != nil {
		return ai.GenerationConfig{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return gen, nil
}

// Run executes one turn. Only one turn per session may be in flight; a concurrent
// call fails with chatService.ErrSessionBusy. The reply is returned even when
// deliver fails, since it is already recorded in the session.
func (r *Runner) Run(ctx context.Context, sessionID string, in Input, deliver Deliver) (string, error) {
	if strings.TrimSpace(in.Message) == "" {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, ai.ErrEmptyQuestion)
	}
	gen, err := r.Generation(in.Overrides)
	if err != nil {
		return "", err
	}

	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	turnLog, err := session.Begin()
	if err != nil {
		return "", err
	}
	defer session.End()

	apiKey := session.APIKey()
	if apiKey == "" {
		apiKey = r.defaults.APIKey
	}

	var reply string
	switch in.Mode {
	case ModeDocument:
		doc, ok := session.Document()
		if !ok {
			err = apperr.Parse("no document uploaded", nil)
			break
		}
		reply, err = r.llm.AskDocument(ctx, ai.DocumentRequest{
			History:  turnLog,
			Document: doc,
			Question: in.Message,
			Config:   gen,
			APIKey:   apiKey,
			OnStage:  session.SetStage,
		})
	default:
		reply, err = r.llm.Ask(ctx, ai.Request{
			History:  turnLog,
			Persona:  session.PersonaID(),
			Question: in.Message,
			Config:   gen,
			APIKey:   apiKey,
			OnStage:  session.SetStage,
		})
	}
	if err != nil {
		r.log.Warn().Err(err).Str("session", sessionID).Str("mode", string(in.Mode)).Msg("turn failed")
		return "", err
	}

	if turnLog.Stale() {
		r.log.Info().Str("session", sessionID).Msg("history cleared during turn, reply not recorded")
	}

	session.SetStage(chat.StageDelivering)
	if deliver != nil {
		if err := deliver(ctx, reply); err != nil {
			r.log.Debug().Err(err).Str("session", sessionID).Msg("delivery interrupted")
			return reply, fmt.Errorf("deliver reply: %w", err)
		}
	}
	return reply, nil
}
