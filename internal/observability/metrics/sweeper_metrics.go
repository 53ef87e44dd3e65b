package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SweeperReasonDeadlineExceeded     = "deadline_exceeded"
	SweeperReasonDBLockTimeout        = "db_lock_timeout"
	SweeperReasonSerializationFailure = "serialization_failure"
	SweeperReasonUniqueViolation      = "unique_violation"
	SweeperReasonUnknown              = "unknown"
)

// SweeperMetrics captures reconciliation sweep health on the Prometheus registry.
type SweeperMetrics struct {
	runs       prometheus.Counter
	duration   prometheus.Histogram
	errors     *prometheus.CounterVec
	reconciled *prometheus.CounterVec
	runLoopLag prometheus.Observer
}

var (
	sweeperMetricsOnce sync.Once
	sweeperMetrics     *SweeperMetrics
)

// Sweeper returns the singleton sweeper metrics registry.
func Sweeper() *SweeperMetrics {
	return SweeperWithConfig(Config{})
}

// SweeperWithConfig returns the singleton sweeper metrics registry using config labels.
func SweeperWithConfig(cfg Config) *SweeperMetrics {
	sweeperMetricsOnce.Do(func() {
		sweeperMetrics = newSweeperMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sweeperMetrics
}

func newSweeperMetrics(registerer prometheus.Registerer, cfg Config) *SweeperMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "subsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "subsync_sweeper_runs_total",
		Help:        "Reconciliation sweep runs.",
		ConstLabels: constLabels,
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "subsync_sweeper_run_duration_seconds",
		Help:        "Reconciliation sweep duration.",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsync_sweeper_errors_total",
		Help:        "Reconciliation sweep errors by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsync_sweeper_reconciled_total",
		Help:        "Subscriptions checked by the sweep, by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "subsync_sweeper_run_loop_lag_seconds",
		Help:        "Lag between scheduled tick and actual sweep start.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60},
	})

	registerer.MustRegister(runs, duration, errs, reconciled, runLoopLag)

	return &SweeperMetrics{
		runs:       runs,
		duration:   duration,
		errors:     errs,
		reconciled: reconciled,
		runLoopLag: runLoopLag,
	}
}

func (m *SweeperMetrics) IncRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

func (m *SweeperMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *SweeperMetrics) IncError(err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(ClassifySweeperReason(err)).Inc()
}

// IncReconciled counts one subscription checked against the provider.
func (m *SweeperMetrics) IncReconciled(result string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(result).Inc()
}

func (m *SweeperMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.runLoopLag.Observe(d.Seconds())
}

func ClassifySweeperReason(err error) string {
	switch {
	case err == nil:
		return SweeperReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SweeperReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return SweeperReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SweeperReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return SweeperReasonUniqueViolation
	default:
		return SweeperReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
