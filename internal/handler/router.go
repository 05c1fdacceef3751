package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhouzirui/z-analyst/backend/internal/handler/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/handler/persona"
	"github.com/zhouzirui/z-analyst/backend/internal/handler/socket"
	"github.com/zhouzirui/z-analyst/backend/internal/handler/stream"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/z-analyst/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-analyst/backend/internal/model/persona"
	"github.com/zhouzirui/z-analyst/backend/internal/observability"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	documentService "github.com/zhouzirui/z-analyst/backend/internal/service/document"
	"github.com/zhouzirui/z-analyst/backend/internal/service/reveal"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
	"github.com/zhouzirui/z-analyst/backend/pkg/utils"
)

// Dependencies 是路由需要的全部服务。
type Dependencies struct {
	Personas  personaModel.Store
	Chat      *chatService.Service
	Runner    *turn.Runner
	Extractor *documentService.Extractor
	Pacer     reveal.Pacer
	MaxUpload int64
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(logging.Component("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": deps.Chat.Count()})
	})
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler(deps.Gatherer))

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Personas, deps.Extractor, deps.Runner, metricsOrNil(deps.Metrics), deps.MaxUpload)
	streamHandler := stream.New(deps.Chat, deps.Runner, deps.Pacer, streamMetricsOrNil(deps.Metrics))
	socketHandler := socket.NewWebSocketHandler(deps.Chat, deps.Runner, deps.Pacer, streamMetricsOrNil(deps.Metrics))

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		socketHandler.RegisterRoutes(api)
	})

	return r
}

// 避免把 nil 的 *Metrics 包进非 nil 接口
func metricsOrNil(m *observability.Metrics) chat.Metrics {
	if m == nil {
		return nil
	}
	return m
}

func streamMetricsOrNil(m *observability.Metrics) stream.Metrics {
	if m == nil {
		return nil
	}
	return m
}
