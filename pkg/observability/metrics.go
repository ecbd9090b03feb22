package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records engine-level counters and latencies.
type Metrics interface {
	RecordTurn(ctx context.Context, duration time.Duration, err error)
	RecordAgent(ctx context.Context, agent string, duration time.Duration, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, tokens int, err error)
}

type NopMetrics struct{}

func (NopMetrics) RecordTurn(context.Context, time.Duration, error)                  {}
func (NopMetrics) RecordAgent(context.Context, string, time.Duration, error)         {}
func (NopMetrics) RecordToolExecution(context.Context, string, time.Duration, error) {}
func (NopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, error)  {}

// OTelMetrics implements Metrics on the otel metric API. With the
// prometheus exporter installed the series surface on /metrics.
type OTelMetrics struct {
	turnDuration  metric.Float64Histogram
	turnsTotal    metric.Int64Counter
	turnErrors    metric.Int64Counter
	agentDuration metric.Float64Histogram
	agentErrors   metric.Int64Counter
	toolDuration  metric.Float64Histogram
	toolErrors    metric.Int64Counter
	llmDuration   metric.Float64Histogram
	llmTokens     metric.Int64Counter
	llmErrors     metric.Int64Counter
}

func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	if m.turnDuration, err = meter.Float64Histogram("scholar_turn_duration_seconds"); err != nil {
		return nil, err
	}
	if m.turnsTotal, err = meter.Int64Counter("scholar_turns_total"); err != nil {
		return nil, err
	}
	if m.turnErrors, err = meter.Int64Counter("scholar_turn_errors_total"); err != nil {
		return nil, err
	}
	if m.agentDuration, err = meter.Float64Histogram("scholar_agent_duration_seconds"); err != nil {
		return nil, err
	}
	if m.agentErrors, err = meter.Int64Counter("scholar_agent_errors_total"); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram("scholar_tool_duration_seconds"); err != nil {
		return nil, err
	}
	if m.toolErrors, err = meter.Int64Counter("scholar_tool_errors_total"); err != nil {
		return nil, err
	}
	if m.llmDuration, err = meter.Float64Histogram("scholar_llm_duration_seconds"); err != nil {
		return nil, err
	}
	if m.llmTokens, err = meter.Int64Counter("scholar_llm_tokens_total"); err != nil {
		return nil, err
	}
	if m.llmErrors, err = meter.Int64Counter("scholar_llm_errors_total"); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *OTelMetrics) RecordTurn(ctx context.Context, duration time.Duration, err error) {
	m.turnDuration.Record(ctx, duration.Seconds())
	m.turnsTotal.Add(ctx, 1)
	if err != nil {
		m.turnErrors.Add(ctx, 1)
	}
}

func (m *OTelMetrics) RecordAgent(ctx context.Context, agent string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("agent", agent))
	m.agentDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.agentErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTelMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTelMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, tokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if tokens > 0 {
		m.llmTokens.Add(ctx, int64(tokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

// InitPrometheusMetrics wires the otel metric pipeline into a prometheus
// registry and returns engine metrics plus the registry for /metrics.
func InitPrometheusMetrics() (*OTelMetrics, *prometheus.Registry, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	metrics, err := NewOTelMetrics(provider.Meter("scholar"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return metrics, registry, nil
}

var _ Metrics = (*OTelMetrics)(nil)
var _ Metrics = NopMetrics{}
