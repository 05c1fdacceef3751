// Package httperr 把服务层错误映射为 HTTP 状态码和统一的错误响应体。
package httperr

import (
	"errors"
	"net/http"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	chatService "github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
	"github.com/zhouzirui/z-analyst/backend/pkg/utils"
)

// Status 把错误映射为 HTTP 状态码与响应体。
func Status(err error) (int, utils.ErrorBody) {
	switch code := apperr.CodeOf(err); code {
	case apperr.CodeMissingCredential:
		return http.StatusUnauthorized, utils.ErrorBody{Error: apperr.Display(err), Code: string(code)}
	case apperr.CodeParse:
		return http.StatusUnprocessableEntity, utils.ErrorBody{Error: apperr.Display(err), Code: string(code)}
	case apperr.CodeAPI:
		return http.StatusBadGateway, utils.ErrorBody{Error: apperr.Display(err), Code: string(code)}
	}

	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, utils.ErrorBody{Error: err.Error(), Code: "SESSION_NOT_FOUND"}
	case errors.Is(err, chatService.ErrSessionBusy):
		return http.StatusConflict, utils.ErrorBody{Error: err.Error(), Code: "SESSION_BUSY"}
	case errors.Is(err, turn.ErrInvalidInput):
		return http.StatusBadRequest, utils.ErrorBody{Error: err.Error(), Code: "INVALID_REQUEST"}
	default:
		return http.StatusInternalServerError, utils.ErrorBody{Error: "internal error", Code: "INTERNAL"}
	}
}

// Respond 按错误类别选择状态码并发送错误响应
func Respond(w http.ResponseWriter, err error) {
	status, body := Status(err)
	utils.RespondJSON(w, status, body)
}
