package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/handler/httperr"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/service/reveal"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
	"github.com/zhouzirui/z-analyst/backend/pkg/utils"
)

// Metrics counts outbound events; observability.Metrics implements it.
type Metrics interface {
	ObserveStreamEvent(transport, eventType string)
}

// Handler delivers a completed reply via Server-Sent Events, chunk by chunk.
type Handler struct {
	chatSvc *chatService.Service
	runner  *turn.Runner
	pacer   reveal.Pacer
	metrics Metrics
	log     zerolog.Logger
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, runner *turn.Runner, pacer reveal.Pacer, metrics Metrics) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		runner:  runner,
		pacer:   pacer,
		metrics: metrics,
		log:     logging.Component("stream"),
	}
}

// RegisterRoutes mounts GET /stream/{sessionID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	query := r.URL.Query()

	input, err := ParseQuery(query)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	if _, err := h.runner.Generation(input.Overrides); err != nil {
		httperr.Respond(w, err)
		return
	}
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		httperr.Respond(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := h.HandleStreamRequest(r.Context(), w, flusher, sessionID, input); err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("stream ended with error")
	}
}

// HandleStreamRequest runs one turn and writes start, delta, message and end events.
// Failures are reported as a single error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, input turn.Input) error {
	if err := h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID}); err != nil {
		return err
	}

	reply, err := h.runner.Run(ctx, sessionID, input, func(ctx context.Context, reply string) error {
		return h.pacer.Play(ctx, reply, func(chunk string) error {
			return h.send(w, flusher, StreamResponse{Event: "delta", SessionID: sessionID, Content: chunk})
		})
	})
	if err != nil && reply == "" {
		_, body := httperr.Status(err)
		_ = h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: body.Error, Code: body.Code})
		return err
	}
	if err != nil {
		// 客户端已断开，回复已写入会话
		return err
	}

	if err := h.send(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Content: reply}); err != nil {
		return err
	}
	if err := h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true}); err != nil {
		return err
	}

	h.log.Info().Str("session", sessionID).Str("mode", string(input.Mode)).Int("length", len(reply)).Msg("completed response")
	return nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) error {
	if h.metrics != nil {
		h.metrics.ObserveStreamEvent("sse", response.Event)
	}
	return utils.SendSSEEvent(w, flusher, response.Event, response)
}

// ParseQuery reads message, mode and generation overrides from the query string.
func ParseQuery(query url.Values) (turn.Input, error) {
	message := query.Get("message")
	if strings.TrimSpace(message) == "" {
		return turn.Input{}, fmt.Errorf("%w: message query parameter is required", turn.ErrInvalidInput)
	}

	mode, err := turn.ParseMode(query.Get("mode"))
	if err != nil {
		return turn.Input{}, err
	}

	var overrides turn.Overrides
	if raw := strings.TrimSpace(query.Get("temperature")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return turn.Input{}, fmt.Errorf("%w: invalid temperature %q", turn.ErrInvalidInput, raw)
		}
		overrides.Temperature = &v
	}
	if raw := strings.TrimSpace(query.Get("maxTokens")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return turn.Input{}, fmt.Errorf("%w: invalid maxTokens %q", turn.ErrInvalidInput, raw)
		}
		overrides.MaxTokens = &v
	}
	overrides.Model = query.Get("model")
	overrides.Endpoint = query.Get("endpoint")

	return turn.Input{Message: message, Mode: mode, Overrides: overrides}, nil
}
