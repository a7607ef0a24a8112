package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the runtime's metrics façade: one Record method per component
// that emits counters/histograms, covering the Tool Executor (C5), the Hook
// Pipeline (C4), the Access-Control Policy Engine (C9), the Bi-Temporal
// Graph Store (C10) and the Resource Tracker (C1).
type Metrics interface {
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordHookDispatch(ctx context.Context, point string, componentName string, duration time.Duration, outcome string)
	RecordAccessDecision(ctx context.Context, operation, resource string, allowed bool)
	RecordGraphQuery(ctx context.Context, operation string, duration time.Duration, err error)
	RecordResourceUsage(ctx context.Context, componentName string, memoryBytes int64, cpuTimeMs int64)
}

// PrometheusMetrics is the OpenTelemetry-metrics-backed Metrics
// implementation, exported through the OTel Prometheus bridge
// (go.opentelemetry.io/otel/exporters/prometheus) rather than the
// prometheus client's native registry, so every instrument flows through
// one otel/metric.Meter regardless of which component recorded it.
type PrometheusMetrics struct {
	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	hookDispatchTotal    metric.Int64Counter
	hookDispatchDuration metric.Float64Histogram

	accessDecisionsTotal metric.Int64Counter

	graphQueryDuration    metric.Float64Histogram
	graphQueryErrorsTotal metric.Int64Counter

	resourceMemoryBytes metric.Int64Histogram
	resourceCPUTimeMs   metric.Int64Histogram
}

// NewPrometheusMetrics creates every instrument this façade records,
// against the given meter (normally one obtained from an
// sdkmetric.MeterProvider wired to the OTel Prometheus exporter).
func NewPrometheusMetrics(meter metric.Meter) (*PrometheusMetrics, error) {
	var err error
	m := &PrometheusMetrics{}

	if m.toolDuration, err = meter.Float64Histogram("llmspell.tool.duration",
		metric.WithDescription("Tool execution duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.toolCallsTotal, err = meter.Int64Counter("llmspell.tool.calls_total",
		metric.WithDescription("Total number of tool invocations")); err != nil {
		return nil, err
	}
	if m.toolErrorsTotal, err = meter.Int64Counter("llmspell.tool.errors_total",
		metric.WithDescription("Total number of tool invocation errors")); err != nil {
		return nil, err
	}
	if m.hookDispatchTotal, err = meter.Int64Counter("llmspell.hook.dispatch_total",
		metric.WithDescription("Total number of hook dispatches, by point and outcome")); err != nil {
		return nil, err
	}
	if m.hookDispatchDuration, err = meter.Float64Histogram("llmspell.hook.dispatch_duration",
		metric.WithDescription("Hook dispatch duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.accessDecisionsTotal, err = meter.Int64Counter("llmspell.access.decisions_total",
		metric.WithDescription("Total number of access-control decisions, by operation and allowed/denied")); err != nil {
		return nil, err
	}
	if m.graphQueryDuration, err = meter.Float64Histogram("llmspell.graph.query_duration",
		metric.WithDescription("Graph store query duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.graphQueryErrorsTotal, err = meter.Int64Counter("llmspell.graph.query_errors_total",
		metric.WithDescription("Total number of graph store query errors")); err != nil {
		return nil, err
	}
	if m.resourceMemoryBytes, err = meter.Int64Histogram("llmspell.resource.memory_bytes",
		metric.WithDescription("Peak memory observed per tracked operation"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.resourceCPUTimeMs, err = meter.Int64Histogram("llmspell.resource.cpu_time_ms",
		metric.WithDescription("CPU time observed per tracked operation"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMeterProvider wires an OTel SDK MeterProvider to the OTel Prometheus
// exporter (go.opentelemetry.io/otel/exporters/prometheus), which registers
// its collectors against registerer (github.com/prometheus/client_golang's
// Registerer) so every instrument created through the returned provider's
// Meter ends up scraped via the ordinary Prometheus client pipeline.
func NewMeterProvider(registerer prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registerer))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrToolName, tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordHookDispatch(ctx context.Context, point string, componentName string, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHookPoint, point),
		attribute.String(AttrComponentID, componentName),
		attribute.String("outcome", outcome),
	)
	m.hookDispatchTotal.Add(ctx, 1, attrs)
	m.hookDispatchDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *PrometheusMetrics) RecordAccessDecision(ctx context.Context, operation, resource string, allowed bool) {
	if m == nil {
		return
	}
	m.accessDecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("resource", resource),
		attribute.Bool("allowed", allowed),
	))
}

func (m *PrometheusMetrics) RecordGraphQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.graphQueryDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.graphQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordResourceUsage(ctx context.Context, componentName string, memoryBytes int64, cpuTimeMs int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrComponentID, componentName))
	m.resourceMemoryBytes.Record(ctx, memoryBytes, attrs)
	m.resourceCPUTimeMs.Record(ctx, cpuTimeMs, attrs)
}

var _ Metrics = (*PrometheusMetrics)(nil)

// SetGlobalMetrics installs the process-wide Metrics implementation.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide Metrics implementation, falling
// back to NoopMetrics before SetGlobalMetrics has been called.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return NoopMetrics{}
	}
	return globalMetrics
}
