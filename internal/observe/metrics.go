// Package observe holds the OpenTelemetry instruments recorded by the turn
// loop and the provider setup that exposes them to Prometheus.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider]; [Noop] is the default for components that were not
// given one.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "buddy"

type Metrics struct {
	// TurnOutcomes counts finished turns by attribute.String("outcome", ...).
	TurnOutcomes metric.Int64Counter

	// TurnDuration is the time from wake acceptance to the end of the reply.
	TurnDuration metric.Float64Histogram

	STTDuration      metric.Float64Histogram
	DialogueDuration metric.Float64Histogram
	TTSDuration      metric.Float64Histogram

	// UtteranceDuration is the audio length collected per segmentation,
	// with attribute.String("policy", ...).
	UtteranceDuration metric.Float64Histogram

	// Fallbacks counts degraded paths by attribute.String("kind", ...):
	// "dialogue" for the canned reply, "speech" for printed output.
	Fallbacks metric.Int64Counter

	meter metric.Meter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.TurnOutcomes, err = m.Int64Counter("buddy.turn.outcomes",
		metric.WithDescription("Turns ended, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("buddy.turn.duration",
		metric.WithDescription("Time from wake acceptance to the end of the reply."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("buddy.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DialogueDuration, err = m.Float64Histogram("buddy.dialogue.duration",
		metric.WithDescription("Latency of the dialogue service round trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("buddy.tts.duration",
		metric.WithDescription("Latency of synthesis including playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("buddy.utterance.duration",
		metric.WithDescription("Audio collected per segmentation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1, 2, 4, 6, 8, 10),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("buddy.fallbacks",
		metric.WithDescription("Degraded paths taken, by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// QueueStats is implemented by the frame queue.
type QueueStats interface {
	Len() int
	Dropped() int64
}

// ObserveQueue registers gauges reporting the depth and drop count of q.
func (m *Metrics) ObserveQueue(q QueueStats) error {
	depth, err := m.meter.Int64ObservableGauge("buddy.queue.depth",
		metric.WithDescription("Frames waiting in the capture queue."),
	)
	if err != nil {
		return err
	}
	dropped, err := m.meter.Int64ObservableCounter("buddy.queue.dropped",
		metric.WithDescription("Frames dropped because the capture queue was full."),
	)
	if err != nil {
		return err
	}

	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(q.Len()))
		o.ObserveInt64(dropped, q.Dropped())
		return nil
	}, depth, dropped)
	return err
}

func (m *Metrics) RecordOutcome(ctx context.Context, outcome string) {
	m.TurnOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordFallback(ctx context.Context, kind string) {
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordUtterance(ctx context.Context, policy string, seconds float64) {
	m.UtteranceDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("policy", policy)))
}
