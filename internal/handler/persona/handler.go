package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-analyst/backend/internal/model/persona"
	"github.com/zhouzirui/z-analyst/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

type listResponse struct {
	DefaultID string            `json:"defaultId"`
	Personas  []persona.Persona `json:"personas"`
}

// handleListPersonas 列出所有可选角色，指令内容不对外暴露
func (h *Handler) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, listResponse{
		DefaultID: persona.DefaultID,
		Personas:  h.personas.List(),
	})
}
