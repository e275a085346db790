package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const kindUnauthenticated = "unauthenticated"

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func mapErrorToStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidInput, domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError не раскрывает текст внутренних ошибок клиенту
func (s *Server) writeError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		s.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		c.JSON(status, errorResponse{Error: "internal error", Kind: string(kind)})
		return
	}
	resp := errorResponse{Error: err.Error(), Kind: string(kind)}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Fields = de.Fields
	}
	c.JSON(status, resp)
}
