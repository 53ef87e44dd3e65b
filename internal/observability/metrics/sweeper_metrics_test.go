package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySweeperReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SweeperReasonDeadlineExceeded},
		{name: "wrapped_deadline", err: fmt.Errorf("retrieve: %w", context.DeadlineExceeded), want: SweeperReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SweeperReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SweeperReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SweeperReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SweeperReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySweeperReason(tc.err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSweeperMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSweeperMetrics(registry, Config{ServiceName: "subsync", Environment: "test"})

	m.IncRun()
	m.IncReconciled("updated")
	m.IncReconciled("updated")
	m.IncError(context.DeadlineExceeded)

	if got := testutil.ToFloat64(m.runs); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(m.reconciled.WithLabelValues("updated")); got != 2 {
		t.Fatalf("expected 2 reconciled, got %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues(SweeperReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline error, got %v", got)
	}
}
