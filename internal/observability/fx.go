package observability

import (
	"github.com/smallbiznis/subsync/internal/observability/logger"
	"github.com/smallbiznis/subsync/internal/observability/metrics"
	"github.com/smallbiznis/subsync/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the zap logger, the OTel tracer and meter providers, the
// engine instruments and HTTP metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(announce),
)

type derivedConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

func splitConfig(cfg Config) derivedConfigs {
	debug := cfg.Debug()
	return derivedConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               debug,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		},
		Tracing: tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}

// announce forces the tracer provider to be built so spans from the first
// request are exported.
func announce(cfg Config, _ *sdktrace.TracerProvider, log *zap.Logger) {
	log.Info("telemetry configured",
		zap.Bool("otel_enabled", cfg.OtelEnabled),
		zap.String("otel_protocol", cfg.OtelExporterProtocol),
		zap.Float64("sampling_ratio", cfg.OtelSamplingRatio),
		zap.Bool("debug", cfg.Debug()),
	)
}
