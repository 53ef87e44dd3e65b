package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware starts a server span per request. Provider webhooks carry no
// trace headers, so their spans are roots tagged with the provider name.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("subsync/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName(c.Request.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		reqCtx := c.Request.Context()
		if requestID := obscontext.RequestIDFromContext(reqCtx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if userID := obscontext.UserIDFromContext(reqCtx); userID != "" {
			attrs = append(attrs, attribute.String("subsync.user_id", userID))
		}
		if provider := c.Param("provider"); provider != "" {
			attrs = append(attrs, attribute.String("subsync.provider", provider))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests:
			span.AddEvent("retryable_response")
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
