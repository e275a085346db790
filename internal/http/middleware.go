package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const (
	headerRequestID  = "X-Request-ID"
	headerCustomerID = "X-Customer-ID"

	ctxRequestID = "request_id"
	ctxActor     = "actor"
)

// requestID берёт id запроса из заголовка или генерирует новый
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(ctxRequestID)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: string(domain.KindInternal)})
	})
}

// authenticate определяет покупателя по заголовку X-Customer-ID
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(headerCustomerID), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + headerCustomerID, Kind: kindUnauthenticated})
			return
		}
		actor, err := s.customers.ResolveActor(c, id)
		if domain.KindOf(err) == domain.KindNotFound {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unknown customer", Kind: kindUnauthenticated})
			return
		}
		if err != nil {
			s.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxActor, actor)
		c.Next()
	}
}

// actorFrom пустой Actor, если middleware не отработал; политика такой отклонит
func actorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if a, ok := v.(domain.Actor); ok {
			return a
		}
	}
	return domain.Actor{}
}
