package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "vibecheck"

// Metrics holds all OTEL metric instruments for vibecheck.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// LLM token counters (partitioned by provider + model via attributes)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// Verdict cache counters
	VerdictCacheHits   metric.Int64Counter
	VerdictCacheMisses metric.Int64Counter

	// Evaluation counter (partitioned by outcome: yes, no, error)
	Evaluations metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.VerdictCacheHits, err = meter.Int64Counter("verdict_cache.hits",
		metric.WithDescription("Number of verdict cache hits (artifact and specification unchanged, reused previous result)"))
	if err != nil {
		return nil, err
	}

	m.VerdictCacheMisses, err = meter.Int64Counter("verdict_cache.misses",
		metric.WithDescription("Number of verdict cache misses (new artifact, changed specification, or TTL expired)"))
	if err != nil {
		return nil, err
	}

	m.Evaluations, err = meter.Int64Counter("evaluations.total",
		metric.WithDescription("Total evaluations partitioned by outcome (yes, no, error)"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records LLM token usage on the metric counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordCacheHit records a verdict cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.VerdictCacheHits.Add(ctx, 1)
}

// RecordCacheMiss records a verdict cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.VerdictCacheMisses.Add(ctx, 1)
}

// RecordEvaluation records an evaluation with the given outcome.
func (m *Metrics) RecordEvaluation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("evaluation.outcome", outcome),
	))
}
