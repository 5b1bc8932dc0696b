package middleware

import (
	"time"

	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLogMiddleware logs one http_access line per request through the request logger.
func AccessLogMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logctx.FromGin(c, base)
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			log.Warnw("http_access", append(fields, "errors", c.Errors.String())...)
			return
		}
		log.Infow("http_access", fields...)
	}
}
