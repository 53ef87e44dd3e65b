package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	// Format is "json" (default) or "console".
	Format string
	// Debug disables sampling and switches zap to development mode.
	Debug bool

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as the zap global and flushes
// it on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Sampling = nil
	zapCfg.DisableCaller = !cfg.IncludeCaller
	zapCfg.DisableStacktrace = true

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var options []zap.Option
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Debug {
		zapCfg.Development = true
	} else {
		options = append(options, zap.WrapCore(sampler(cfg)))
	}

	base, err := zapCfg.Build(options...)
	if err != nil {
		return nil, err
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "subsync"
	}
	base = base.With(
		zap.String("service", serviceName),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(base)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = base.Sync()
		}))
	}
	return base, nil
}

// sampler drops repeats of identical messages past the first SamplingInitial
// per window, keeping every SamplingThereafter-th.
func sampler(cfg Config) func(zapcore.Core) zapcore.Core {
	initial, thereafter, window := cfg.SamplingInitial, cfg.SamplingThereafter, cfg.SamplingWindow
	if initial <= 0 {
		initial = 100
	}
	if thereafter <= 0 {
		thereafter = 100
	}
	if window <= 0 {
		window = time.Second
	}
	return func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, window, initial, thereafter)
	}
}

// FromContext is WithContext over the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds the request, user, provider event and trace ids carried
// by ctx. Absent ids are omitted.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := make([]zap.Field, 0, 5)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if userID := obscontext.UserIDFromContext(ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	if eventID := obscontext.EventIDFromContext(ctx); eventID != "" {
		fields = append(fields, zap.String("event_id", eventID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func WithSubscription(log *zap.Logger, subscriptionID, providerSubscriptionID string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(
		zap.String("subscription_id", strings.TrimSpace(subscriptionID)),
		zap.String("provider_subscription_id", strings.TrimSpace(providerSubscriptionID)),
	)
}

// WithProviderEvent scopes log to one inbound provider event. The event id
// comes from the context.
func WithProviderEvent(log *zap.Logger, provider, eventType string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(zap.String("provider", provider), zap.String("event_type", eventType))
}
