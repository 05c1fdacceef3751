package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	"github.com/zhouzirui/z-analyst/backend/internal/config"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	"github.com/zhouzirui/z-analyst/backend/internal/model/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/model/document"
)

// HistoryLimit is the number of persisted turns sent with each chat request. Older
// turns are dropped without summarisation.
const HistoryLimit = 10

var ErrEmptyQuestion = errors.New("question must not be empty")

// History is the conversation store the orchestrator reads from and appends to.
type History interface {
	Recent(n int) []chat.Turn
	Append(turn chat.Turn)
}

// Recorder receives completion outcomes; observability.Metrics implements it.
type Recorder interface {
	ObserveCompletion(provider, outcome string, elapsed time.Duration)
}

// Request is one chat turn against the selected persona.
type Request struct {
	History  History
	Persona  string
	Question string
	Config   GenerationConfig
	APIKey   string
	OnStage  func(chat.Stage)
}

// DocumentRequest is one question answered only from an uploaded document.
type DocumentRequest struct {
	History  History
	Document document.Context
	Question string
	Config   GenerationConfig
	APIKey   string
	OnStage  func(chat.Stage)
}

// Service assembles prompts, calls the completer and records the outcome in history.
type Service struct {
	completer        Completer
	prompts          *PromptRegistry
	provider         string
	timeout          time.Duration
	recorder         Recorder
	chatTemplate     prompt.ChatTemplate
	documentTemplate prompt.ChatTemplate
	log              zerolog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder reports completion outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// NewService creates a new turn orchestrator.
func NewService(completer Completer, prompts *PromptRegistry, cfg config.AIConfig, opts ...Option) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Service{
		completer: completer,
		prompts:   prompts,
		provider:  cfg.Provider,
		timeout:   timeout,
		chatTemplate: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		),
		documentTemplate: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.UserMessage("background: {background}question: {question}"),
		),
		log: logging.Component("ai"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask runs one persona chat turn. The user turn is stored before the completion call
// and stays there if the call fails; the assistant turn is stored only on success.
func (s *Service) Ask(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", ErrEmptyQuestion
	}
	if err := req.Config.Validate(); err != nil {
		return "", err
	}

	notify(req.OnStage, chat.StageBuildingContext)
	messages, err := s.BuildMessages(ctx, req.Persona, req.History.Recent(HistoryLimit), req.Question)
	if err != nil {
		return "", err
	}
	req.History.Append(chat.UserTurn(req.Question))

	return s.complete(ctx, req.History, messages, req.Config, req.APIKey, req.OnStage)
}

// AskDocument answers from the document only. Chat history is never sent, but the
// question and answer are still recorded in history. A document whose pages yielded
// no text is sent as an empty background.
func (s *Service) AskDocument(ctx context.Context, req DocumentRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", ErrEmptyQuestion
	}
	if err := req.Config.Validate(); err != nil {
		return "", err
	}

	notify(req.OnStage, chat.StageBuildingContext)
	messages, err := s.BuildDocumentMessages(ctx, req.Document, req.Question)
	if err != nil {
		return "", err
	}
	req.History.Append(chat.UserTurn(req.Question))

	return s.complete(ctx, req.History, messages, req.Config, req.APIKey, req.OnStage)
}

// BuildMessages renders system instruction, history and the new question.
func (s *Service) BuildMessages(ctx context.Context, personaKey string, history []chat.Turn, question string) ([]*schema.Message, error) {
	messages, err := s.chatTemplate.Format(ctx, map[string]any{
		"system":  s.prompts.Lookup(personaKey),
		"history": buildHistoryMessages(history),
		"query":   question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render chat prompt: %w", err)
	}
	return messages, nil
}

// BuildDocumentMessages renders the grounded-answer prompt.
func (s *Service) BuildDocumentMessages(ctx context.Context, doc document.Context, question string) ([]*schema.Message, error) {
	messages, err := s.documentTemplate.Format(ctx, map[string]any{
		"system":     s.prompts.DocumentInstruction(),
		"background": doc.Text,
		"question":   question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render document prompt: %w", err)
	}
	return messages, nil
}

func (s *Service) complete(ctx context.Context, history History, messages []*schema.Message, gen GenerationConfig, apiKey string, onStage func(chat.Stage)) (string, error) {
	notify(onStage, chat.StageAwaitingCompletion)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.completer.Complete(callCtx, CompletionRequest{
		Messages: messages,
		Config:   gen,
		APIKey:   apiKey,
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !apperr.Is(err, apperr.CodeMissingCredential) {
			err = apperr.API("timeout", err)
		} else {
			err = TransportError(err)
		}
		s.observe(string(apperr.CodeOf(err)), elapsed)
		s.log.Warn().Err(err).Str("model", gen.ModelID).Int("messages", len(messages)).Dur("elapsed", elapsed).Msg("completion failed")
		return "", err
	}

	history.Append(chat.AssistantTurn(text))
	s.observe("ok", elapsed)
	s.log.Info().Str("model", gen.ModelID).Int("messages", len(messages)).Int("length", len(text)).Dur("elapsed", elapsed).Msg("generated response")
	return text, nil
}

func (s *Service) observe(outcome string, elapsed time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveCompletion(s.provider, outcome, elapsed)
	}
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

func notify(onStage func(chat.Stage), stage chat.Stage) {
	if onStage != nil {
		onStage(stage)
	}
}
