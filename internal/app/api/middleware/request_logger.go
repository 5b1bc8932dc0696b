package middleware

import (
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLoggerMiddleware attaches a logger enriched with trace_id, and user_id when the query
// names one, to gin.Context and the request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		fields := []interface{}{"trace_id", logctx.TraceID(ctx)}
		if uid := c.Query("user_id"); uid != "" {
			fields = append(fields, "user_id", uid)
			ctx = logctx.WithUserID(ctx, uid)
		}

		reqLogger := base.With(fields...)
		c.Set(logctx.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, reqLogger))

		c.Next()
	}
}
