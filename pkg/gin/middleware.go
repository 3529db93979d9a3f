package gin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sangah323/MPS-XRPL/extensions/idempotency"
)

const (
	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
	// IdempotencyKeyHeader lets callers retry a submission safely.
	IdempotencyKeyHeader = "Idempotency-Key"
)

// RequestID assigns every request an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// IdempotencyKey moves the Idempotency-Key header into the request context
// where the idempotent escrower looks for it.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
			c.Request = c.Request.WithContext(idempotency.ContextWithKey(c.Request.Context(), key))
		}
		c.Next()
	}
}

// Logger logs one line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(RequestIDHeader)),
		)
	}
}
