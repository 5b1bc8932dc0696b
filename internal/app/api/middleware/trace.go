package middleware

import (
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/gin-gonic/gin"
)

const (
	HeaderRequestID = "X-Request-ID"
	ginTraceIDKey   = "traceID"
)

// TraceMiddleware reads X-Request-ID if provided by the client, otherwise generates a UUID, and
// stores it in both gin.Context and the request context.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderRequestID)
		if traceID == "" {
			traceID = tool.GenerateUUIDV7()
		}

		c.Set(ginTraceIDKey, traceID)
		c.Request = c.Request.WithContext(logctx.WithTraceID(c.Request.Context(), traceID))
		c.Writer.Header().Set(HeaderRequestID, traceID)
		c.Next()
	}
}
