package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	providerEvents   metric.Int64Counter
	transitions      metric.Int64Counter
	providerFailures metric.Int64Counter
	providerLatency  metric.Float64Histogram
	lockWait         metric.Float64Histogram
	rateLimited      metric.Int64Counter
}

// exportInterval is how often the periodic reader pushes to the collector.
const exportInterval = 10 * time.Second

// NewProvider returns a no-op provider when OTel is off. Otherwise metrics are
// pushed over OTLP with the same resource attributes the tracer uses.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "subsync"
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", cfg.Environment),
		)),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			// flush the last interval before the exporter goes away
			if err := provider.ForceFlush(ctx); err != nil && log != nil {
				log.Warn("meter provider flush failed", zap.Error(err))
			}
			return provider.Shutdown(ctx)
		}))
	}

	if log != nil {
		log.Debug("otlp metrics enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", exportInterval),
		)
	}
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "subsync"
	}
	meter := provider.Meter(name)

	providerEvents, err := meter.Int64Counter("subsync_provider_events_total",
		metric.WithDescription("Inbound provider events by ledger outcome."),
	)
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("subsync_subscription_transitions_total",
		metric.WithDescription("Subscription status changes."),
	)
	if err != nil {
		return nil, err
	}
	providerFailures, err := meter.Int64Counter("subsync_provider_call_failures_total",
		metric.WithDescription("Failed outbound provider calls."),
	)
	if err != nil {
		return nil, err
	}
	providerLatency, err := meter.Float64Histogram("subsync_provider_call_duration_seconds",
		metric.WithDescription("Outbound provider call latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}
	lockWait, err := meter.Float64Histogram("subsync_user_lock_wait_seconds",
		metric.WithDescription("Time spent waiting for the per-user lock."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("subsync_rate_limit_decisions_total",
		metric.WithDescription("Per-user rate limit decisions."),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		providerEvents:   providerEvents,
		transitions:      transitions,
		providerFailures: providerFailures,
		providerLatency:  providerLatency,
		lockWait:         lockWait,
		rateLimited:      rateLimited,
	}, nil
}

// RecordProviderEvent counts an inbound provider event by type and ledger outcome.
func (m *Metrics) RecordProviderEvent(ctx context.Context, provider, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.providerEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransition counts a subscription status change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderFailure counts failed gateway calls.
func (m *Metrics) RecordProviderFailure(ctx context.Context, operation, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.providerFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ObserveProviderCall records the duration of one gateway operation.
func (m *Metrics) ObserveProviderCall(ctx context.Context, operation string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", outcome),
	)
	m.providerLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// ObserveLockWait records how long a caller waited for a user's lock.
func (m *Metrics) ObserveLockWait(ctx context.Context, elapsed time.Duration, acquired bool) {
	if m == nil {
		return
	}
	outcome := "acquired"
	if !acquired {
		outcome = "timeout"
	}
	m.lockWait.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimit counts throttle decisions for user actions.
func (m *Metrics) RecordRateLimit(ctx context.Context, route string, allowed bool) {
	if m == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	attrs := FilterAttributes(
		attribute.String("route", strings.TrimSpace(route)),
		attribute.String("decision", decision),
	)
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"provider":    {},
	"event_type":  {},
	"outcome":     {},
	"from_status": {},
	"to_status":   {},
	"source":      {},
	"operation":   {},
	"reason":      {},
	"decision":    {},
	"method":      {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
