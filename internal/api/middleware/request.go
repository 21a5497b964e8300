package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/pkg/metrics"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFrom returns the request id stamped by ProcessRequest.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type RequestMiddleware struct {
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewRequestMiddleware(logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *RequestMiddleware {
	return &RequestMiddleware{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ProcessRequest stamps every request with an id, logs start and completion
// and feeds the request counters.
func (rm *RequestMiddleware) ProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		ctx := context.WithValue(c.Request.Context(), requestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		rm.logger.Info("Request started",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()))

		c.Next()

		duration := time.Since(start)
		rm.logger.Info("Request completed",
			zap.String("request_id", requestID),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.Int("size", c.Writer.Size()))

		rm.metrics.IncrementCounter("http.requests", map[string]string{"method": c.Request.Method})
		rm.metrics.ObserveLatency("http.request", duration)
	}
}

// RecoverPanic converts a handler panic into a 500 without killing the
// process.
func (rm *RequestMiddleware) RecoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rm.logger.Error("Panic recovered",
					zap.String("request_id", RequestIDFrom(c.Request.Context())),
					zap.Any("error", err),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
					"kind":  "dependency",
				})
			}
		}()
		c.Next()
	}
}
