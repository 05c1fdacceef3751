package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	"github.com/zhouzirui/z-analyst/backend/internal/handler/httperr"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	"github.com/zhouzirui/z-analyst/backend/internal/model/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/model/document"
	"github.com/zhouzirui/z-analyst/backend/internal/model/persona"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	documentService "github.com/zhouzirui/z-analyst/backend/internal/service/document"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
	"github.com/zhouzirui/z-analyst/backend/pkg/utils"
)

// multipartOverhead 为 multipart 边界和表单字段预留的额外字节数。
const multipartOverhead = 1 << 20

// Metrics 是处理器上报的指标，observability.Metrics 实现了它。
type Metrics interface {
	SetActiveSessions(n int)
	ObserveDocumentUpload(outcome string)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
	extractor    *documentService.Extractor
	runner       *turn.Runner
	metrics      Metrics
	maxUpload    int64
	log          zerolog.Logger
}

// New 创建聊天处理器，metrics 可以为 nil
func New(chatSvc *chatService.Service, personaStore persona.Store, extractor *documentService.Extractor, runner *turn.Runner, metrics Metrics, maxUpload int64) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		extractor:    extractor,
		runner:       runner,
		metrics:      metrics,
		maxUpload:    maxUpload,
		log:          logging.Component("chat"),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Put("/persona", h.handleSetPersona)
		r.Put("/credential", h.handleSetCredential)
		r.Get("/messages", h.handleListMessages)
		r.Delete("/messages", h.handleClearMessages)
		r.Get("/export", h.handleExport)
		r.Post("/document", h.handleUploadDocument)
		r.Delete("/document", h.handleClearDocument)
		r.Post("/ask", h.handleAsk)
	})
}

// handleCreateSession 创建会话，未指定角色时使用默认角色
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
		APIKey    string `json:"apiKey"`
	}
	if err := decodeBody(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	personaID := strings.TrimSpace(payload.PersonaID)
	if personaID == "" {
		personaID = persona.DefaultID
	}
	p, ok := h.personaStore.Find(personaID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), p.ID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if key := strings.TrimSpace(payload.APIKey); key != "" {
		session.SetAPIKey(key)
	}
	h.reportSessions()

	h.log.Info().Str("session", session.ID()).Str("persona", p.ID).Msg("session created")
	utils.RespondJSON(w, http.StatusCreated, session.Info())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Info())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		httperr.Respond(w, err)
		return
	}
	h.reportSessions()
	w.WriteHeader(http.StatusNoContent)
}

// handleSetPersona 切换角色，只影响之后的提问
func (h *Handler) handleSetPersona(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := decodeBody(r, &payload); err != nil || strings.TrimSpace(payload.PersonaID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}
	p, found := h.personaStore.Find(strings.TrimSpace(payload.PersonaID))
	if !found {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session.SetPersona(p.ID)
	utils.RespondJSON(w, http.StatusOK, session.Info())
}

// handleSetCredential 保存仅对本会话生效的 API Key，空串表示清除
func (h *Handler) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := decodeBody(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session.SetAPIKey(strings.TrimSpace(payload.APIKey))
	utils.RespondJSON(w, http.StatusOK, session.Info())
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": turns})
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.ClearTranscript(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport 以 JSON Lines 下载完整对话
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	data, err := h.chatSvc.ExportTranscript(r.Context(), sessionID)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	w.Header().Set("Content-Type", chat.ExportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="chat-%s.jsonl"`, sessionID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Debug().Err(err).Str("session", sessionID).Msg("export write failed")
	}
}

// handleUploadDocument 解析上传文件并替换会话文档；解析失败时保留原文档
func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.failUpload(w, apperr.Parse(fmt.Sprintf("file too large: limit is %d bytes", h.maxUpload), err))
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		h.failUpload(w, apperr.Parse("failed to read upload", err))
		return
	}

	mediaType := documentService.DetectMediaType(header.Header.Get("Content-Type"), header.Filename)
	text, err := h.extractor.Extract(blob, mediaType)
	if err != nil {
		h.failUpload(w, err)
		return
	}

	doc := document.Context{SourceName: header.Filename, Text: text}
	session.SetDocument(doc)
	if doc.Empty() {
		h.log.Warn().Str("session", session.ID()).Str("file", header.Filename).Msg("document has no extractable text")
	}
	if h.metrics != nil {
		h.metrics.ObserveDocumentUpload("ok")
	}
	h.log.Info().Str("session", session.ID()).Str("file", header.Filename).Str("type", mediaType).Int("chars", len([]rune(text))).Msg("document uploaded")

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"name":       header.Filename,
		"mediaType":  mediaType,
		"characters": len([]rune(text)),
	})
}

func (h *Handler) failUpload(w http.ResponseWriter, err error) {
	if h.metrics != nil {
		h.metrics.ObserveDocumentUpload(string(apperr.CodeOf(err)))
	}
	h.log.Warn().Err(err).Msg("document upload rejected")
	httperr.Respond(w, err)
}

func (h *Handler) handleClearDocument(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.ClearDocument()
	w.WriteHeader(http.StatusNoContent)
}

// AskRequest 是阻塞式提问的请求体
type AskRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
	turn.Overrides
}

// handleAsk 阻塞等待完整回复
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload AskRequest
	if err := decodeBody(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := turn.ParseMode(payload.Mode)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	reply, err := h.runner.Run(r.Context(), sessionID, turn.Input{
		Message:   payload.Message,
		Mode:      mode,
		Overrides: payload.Overrides,
	}, nil)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"sessionId": sessionID,
		"reply":     reply,
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*chatService.Session, bool) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) reportSessions() {
	if h.metrics != nil {
		h.metrics.SetActiveSessions(h.chatSvc.Count())
	}
}

// decodeBody 解析 JSON 请求体，空请求体视为空对象
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
