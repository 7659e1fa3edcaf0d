package speech

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/loqalabs/loqa-speech/internal/speech"

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds the pipeline's OpenTelemetry instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	meter           metric.Meter
	resolves        metric.Int64Counter
	resolveDuration metric.Float64Histogram
	synthDuration   metric.Float64Histogram
	persists        metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := &Metrics{meter: mp.Meter(meterName)}
	var err error
	if m.resolves, err = m.meter.Int64Counter("loqa.speech.resolves",
		metric.WithDescription("Resolve calls by answering tier and outcome."),
	); err != nil {
		return nil, err
	}
	if m.resolveDuration, err = m.meter.Float64Histogram("loqa.speech.resolve.duration",
		metric.WithDescription("End-to-end resolve latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if m.synthDuration, err = m.meter.Float64Histogram("loqa.speech.synthesis.duration",
		metric.WithDescription("Latency of admitted vendor calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if m.persists, err = m.meter.Int64Counter("loqa.speech.remote.persists",
		metric.WithDescription("Remote persistence attempts by outcome."),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveQueue exports q's active and pending counts as gauges.
func (m *Metrics) ObserveQueue(q *AdmissionQueue) error {
	if m == nil {
		return nil
	}
	active, err := m.meter.Int64ObservableGauge("loqa.speech.queue.active",
		metric.WithDescription("Synthesis jobs currently running."))
	if err != nil {
		return err
	}
	pending, err := m.meter.Int64ObservableGauge("loqa.speech.queue.pending",
		metric.WithDescription("Synthesis jobs waiting for admission."))
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := q.Stats()
		obs.ObserveInt64(active, int64(stats.Active))
		obs.ObserveInt64(pending, int64(stats.Pending))
		return nil
	}, active, pending)
	return err
}

func (m *Metrics) recordResolve(ctx context.Context, source Source, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ErrorCode(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("source", string(source)),
		attribute.String("outcome", outcome),
	)
	m.resolves.Add(ctx, 1, attrs)
	m.resolveDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) recordSynthesis(ctx context.Context, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.synthDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordPersist(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.persists.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
