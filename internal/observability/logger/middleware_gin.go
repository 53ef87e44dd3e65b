package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const HeaderRequestID = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Logger *zap.Logger
	// ErrorClassifier returns the error type and code reported for a failed request.
	ErrorClassifier func(err error) (string, string)
	// QuietRoutes are logged at debug.
	QuietRoutes []string
}

// GinMiddleware logs one line per request. The request id is taken from
// X-Request-Id when the caller sent one and echoed back either way.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	base := cfg.Logger
	if base == nil {
		base = zap.L()
	}
	base = base.Named("http")
	quiet := map[string]struct{}{}
	for _, route := range cfg.QuietRoutes {
		quiet[route] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if provider := c.Param("provider"); provider != "" {
			fields = append(fields, zap.String("provider", provider))
		}
		if lastErr := c.Errors.Last(); lastErr != nil && cfg.ErrorClassifier != nil {
			errorType, errorCode := cfg.ErrorClassifier(lastErr.Err)
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
		}

		_, isQuiet := quiet[route]
		if ce := WithContext(c.Request.Context(), base).Check(requestLevel(status, isQuiet), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

// requestLevel logs answers that make a client or the provider retry at warn.
func requestLevel(status int, quiet bool) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		return zapcore.ErrorLevel
	case status == http.StatusServiceUnavailable,
		status == http.StatusTooManyRequests,
		status == http.StatusConflict:
		return zapcore.WarnLevel
	case quiet:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if requestID == "" || len(requestID) > 128 {
		requestID = ulid.Make().String()
	}
	c.Set("request_id", requestID)
	c.Header(HeaderRequestID, requestID)
	return requestID
}
