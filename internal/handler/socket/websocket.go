package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/handler/httperr"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/service/reveal"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
	"github.com/zhouzirui/z-analyst/backend/pkg/utils"
)

const (
	defaultReadTimeout = 60 * time.Second
	pingInterval       = 54 * time.Second
	writeTimeout       = 10 * time.Second
)

// Metrics counts outbound events; observability.Metrics implements it.
type Metrics interface {
	ObserveStreamEvent(transport, eventType string)
}

// WebSocketHandler 在单个连接上处理多轮提问
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	runner   *turn.Runner
	pacer    reveal.Pacer
	metrics  Metrics
	upgrader websocket.Upgrader
	log      zerolog.Logger
	// readTimeout 是两次入站消息之间允许的最长空闲时间，不含处理一次提问的时间
	readTimeout time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service, runner *turn.Runner, pacer reveal.Pacer, metrics Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		runner:  runner,
		pacer:   pacer,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:         logging.Component("websocket"),
		readTimeout: defaultReadTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AskMessage 是 type=ask 的数据体
type AskMessage struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
	turn.Overrides
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("session", sessionID).Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(ctx, conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("session", sessionID).Msg("read error")
			}
			return
		}

		switch msg.Type {
		case "ask":
			h.handleAsk(ctx, conn, sessionID, msg.Data)
		case "clear":
			session.Clear()
			h.send(conn, sessionID, "cleared", nil)
		default:
			h.send(conn, sessionID, "error", utils.ErrorBody{Error: "unknown message type: " + msg.Type, Code: "INVALID_REQUEST"})
		}
		// 提问期间不读取消息，处理完成后重新计时
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

// handleAsk 运行一轮问答，回复以 delta 分段推送后再发送完整 message
func (h *WebSocketHandler) handleAsk(ctx context.Context, conn *websocket.Conn, sessionID string, raw json.RawMessage) {
	var payload AskMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.send(conn, sessionID, "error", utils.ErrorBody{Error: "invalid ask payload", Code: "INVALID_REQUEST"})
		return
	}
	mode, err := turn.ParseMode(payload.Mode)
	if err != nil {
		h.sendFailure(conn, sessionID, err)
		return
	}

	reply, err := h.runner.Run(ctx, sessionID, turn.Input{
		Message:   payload.Message,
		Mode:      mode,
		Overrides: payload.Overrides,
	}, func(ctx context.Context, reply string) error {
		return h.pacer.Play(ctx, reply, func(chunk string) error {
			return h.send(conn, sessionID, "delta", map[string]string{"content": chunk})
		})
	})
	if err != nil {
		if reply == "" {
			h.sendFailure(conn, sessionID, err)
		}
		return
	}

	h.send(conn, sessionID, "message", map[string]string{"content": reply})
}

func (h *WebSocketHandler) sendFailure(conn *websocket.Conn, sessionID string, err error) {
	_, body := httperr.Status(err)
	h.send(conn, sessionID, "error", body)
}

func (h *WebSocketHandler) send(conn *websocket.Conn, sessionID, msgType string, data interface{}) error {
	if h.metrics != nil {
		h.metrics.ObserveStreamEvent("ws", msgType)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Debug().Err(err).Str("session", sessionID).Str("type", msgType).Msg("write failed")
	}
	return err
}

// pingLoop 定期发送ping消息；WriteControl 可与 WriteJSON 并发调用
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
