// Package observe provides application-wide observability primitives for
// babelrelay: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. The [Snapshot] type keeps the
// human-readable counters served by /api/metrics, with hourly rollups.
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all babelrelay metrics.
const meterName = "github.com/MrWong99/babelrelay"

// Metrics holds all OpenTelemetry metric instruments for the relay.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranslateDuration tracks translation latency per incoming transcript.
	TranslateDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency per utterance.
	TTSDuration metric.Float64Histogram

	// PipelineDuration tracks transcript-in to audio-out latency.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts voiced utterances. Use with attributes:
	//   attribute.String("session", ...), attribute.String("language", ...)
	Utterances metric.Int64Counter

	// Translations counts translator calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	Translations metric.Int64Counter

	// DroppedUtterances counts queue-overflow drops. Use with attribute:
	//   attribute.String("language", ...)
	DroppedUtterances metric.Int64Counter

	// RateAdjustments counts adaptive playback-rate changes.
	RateAdjustments metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// TTSRequests counts synthesis calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	TTSRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveListeners tracks connected listeners across all sessions.
	ActiveListeners metric.Int64UpDownCounter

	// QueueDepth tracks the total queued utterances across all pipelines.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for live-translation latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranslateDuration, err = m.Float64Histogram("babelrelay.translate.duration",
		metric.WithDescription("Latency of translation per transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("babelrelay.tts.duration",
		metric.WithDescription("Latency of speech synthesis per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("babelrelay.pipeline.duration",
		metric.WithDescription("Transcript-in to audio-out latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("babelrelay.utterances",
		metric.WithDescription("Total voiced utterances by session and language."),
	); err != nil {
		return nil, err
	}
	if met.Translations, err = m.Int64Counter("babelrelay.translations",
		metric.WithDescription("Total translator calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.DroppedUtterances, err = m.Int64Counter("babelrelay.utterances.dropped",
		metric.WithDescription("Utterances dropped due to queue overflow."),
	); err != nil {
		return nil, err
	}
	if met.RateAdjustments, err = m.Int64Counter("babelrelay.rate.adjustments",
		metric.WithDescription("Adaptive playback-rate changes."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("babelrelay.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TTSRequests, err = m.Int64Counter("babelrelay.tts.requests",
		metric.WithDescription("Total synthesis calls by provider and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("babelrelay.active_sessions",
		metric.WithDescription("Number of live sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveListeners, err = m.Int64UpDownCounter("babelrelay.active_listeners",
		metric.WithDescription("Number of connected listeners across all sessions."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("babelrelay.queue.depth",
		metric.WithDescription("Queued utterances across all pipelines."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("babelrelay.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records one voiced utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, session, language string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("session", session),
			attribute.String("language", language),
		),
	)
}

// RecordTranslation records a translator call outcome.
func (m *Metrics) RecordTranslation(ctx context.Context, provider, status string) {
	m.Translations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordTTSRequest records a synthesis call outcome.
func (m *Metrics) RecordTTSRequest(ctx context.Context, provider, status string) {
	m.TTSRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordDrop records utterances dropped by queue overflow.
func (m *Metrics) RecordDrop(ctx context.Context, language string, n int64) {
	m.DroppedUtterances.Add(ctx, n,
		metric.WithAttributes(attribute.String("language", language)),
	)
}
