package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	provider, err := NewMeterProvider(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMeterProvider: %v", err)
	}
	m, err := NewPrometheusMetrics(provider.Meter("observability_test"))
	if err != nil {
		t.Fatalf("NewPrometheusMetrics: %v", err)
	}
	return m
}

func TestPrometheusMetrics_RecordToolExecution(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	m.RecordToolExecution(ctx, "search", 50*time.Millisecond, nil)
	m.RecordToolExecution(ctx, "write_file", 100*time.Millisecond, errors.New("boom"))
}

func TestPrometheusMetrics_RecordHookDispatch(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	m.RecordHookDispatch(ctx, "before_tool_execution", "tool:search", 5*time.Millisecond, "continue")
}

func TestPrometheusMetrics_RecordAccessDecision(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	m.RecordAccessDecision(ctx, "graph.query_temporal", "graph:entity", true)
	m.RecordAccessDecision(ctx, "graph.delete_before", "graph:entity", false)
}

func TestPrometheusMetrics_RecordGraphQuery(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	m.RecordGraphQuery(ctx, "traverse", 10*time.Millisecond, nil)
	m.RecordGraphQuery(ctx, "query_temporal", 2*time.Millisecond, errors.New("timeout"))
}

func TestPrometheusMetrics_RecordResourceUsage(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	m.RecordResourceUsage(ctx, "sandbox:exec", 1<<20, 15)
}

func TestPrometheusMetrics_NilReceiverIsSafe(t *testing.T) {
	ctx := context.Background()
	var m *PrometheusMetrics

	m.RecordToolExecution(ctx, "search", time.Millisecond, nil)
	m.RecordHookDispatch(ctx, "before_tool_execution", "tool:search", time.Millisecond, "continue")
	m.RecordAccessDecision(ctx, "graph.query_temporal", "graph:entity", true)
	m.RecordGraphQuery(ctx, "traverse", time.Millisecond, nil)
	m.RecordResourceUsage(ctx, "sandbox:exec", 0, 0)
}

func TestGlobalMetrics_DefaultsToNoop(t *testing.T) {
	metricsMu.Lock()
	globalMetrics = nil
	metricsMu.Unlock()

	if _, ok := GetGlobalMetrics().(NoopMetrics); !ok {
		t.Fatalf("expected GetGlobalMetrics to default to NoopMetrics, got %T", GetGlobalMetrics())
	}
}

func TestGlobalMetrics_SetAndGet(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics(t)

	SetGlobalMetrics(m)
	t.Cleanup(func() { SetGlobalMetrics(nil) })

	if GetGlobalMetrics() != Metrics(m) {
		t.Fatalf("GetGlobalMetrics did not return the installed Metrics")
	}
	GetGlobalMetrics().RecordToolExecution(ctx, "search", time.Millisecond, nil)
}
