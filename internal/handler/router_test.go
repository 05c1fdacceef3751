package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-analyst/backend/internal/config"
	"github.com/zhouzirui/z-analyst/backend/internal/model/persona"
	"github.com/zhouzirui/z-analyst/backend/internal/observability"
	"github.com/zhouzirui/z-analyst/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	documentService "github.com/zhouzirui/z-analyst/backend/internal/service/document"
	"github.com/zhouzirui/z-analyst/backend/internal/service/reveal"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
)

type staticCompleter struct{}

func (staticCompleter) Complete(context.Context, ai.CompletionRequest) (string, error) {
	return "42", nil
}

func newTestRouter(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	cfg := config.AIConfig{
		Provider:    config.ProviderOpenAI,
		APIKey:      "sk-server",
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-3.5-turbo",
		Temperature: 0.7,
		MaxTokens:   1024,
		Timeout:     time.Second,
	}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("zanalyst", reg)
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatService.NewService()
	llm := ai.NewService(staticCompleter{}, ai.NewPromptRegistry(store), cfg, ai.WithRecorder(metrics))

	return NewRouter(Dependencies{
		Personas:  store,
		Chat:      chatSvc,
		Runner:    turn.NewRunner(chatSvc, llm, cfg),
		Extractor: documentService.NewExtractor(1 << 20),
		Pacer:     reveal.Pacer{ChunkSize: 4},
		MaxUpload: 1 << 20,
		Metrics:   metrics,
		Gatherer:  reg,
	}), reg
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"status":"ok","sessions":0}`, resp.Body.String())
}

func TestEndToEndAskIsMetered(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewReader([]byte(`{"personaId":"nlp-scholar"}`))))
	require.Equal(t, http.StatusCreated, resp.Code)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session/"+session.ID+"/ask", bytes.NewReader([]byte(`{"message":"What is attention?"}`))))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"reply":"42"`)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `zanalyst_completions_total{outcome="ok",provider="openai"} 1`)
	require.Contains(t, resp.Body.String(), "zanalyst_active_sessions 1")
}

func TestPreflightAllowed(t *testing.T) {
	router, _ := newTestRouter(t)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/personas", nil))

	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
