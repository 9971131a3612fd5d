// Package observe provides OpenTelemetry metric instruments for the
// streaming pipeline, with a Prometheus exporter bridge via
// [InitProvider] so metrics are scrapeable from a standard /metrics
// endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with their
// own [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all instruments here.
const meterName = "github.com/auralis-ai/auralis"

// Metrics holds the metric instruments for one process. All fields are
// safe for concurrent use; the OTel types synchronize internally.
type Metrics struct {
	// FramesReceived counts inbound protocol frames. Attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	FramesReceived metric.Int64Counter

	// AudioBytesSent counts outbound PCM bytes after resampling.
	// Attribute: attribute.String("provider", ...)
	AudioBytesSent metric.Int64Counter

	// AudioBytesReceived counts inbound PCM bytes at native rate.
	// Attribute: attribute.String("provider", ...)
	AudioBytesReceived metric.Int64Counter

	// SendErrors counts non-fatal send failures. Attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	SendErrors metric.Int64Counter

	// ReconnectAttempts counts reconnection attempts. Attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ReconnectAttempts metric.Int64Counter

	// EnvelopeTruncations counts budgeting calls that dropped content.
	// Attribute: attribute.String("category", ...)
	EnvelopeTruncations metric.Int64Counter

	// EnvelopeBuildDuration tracks context budgeting latency.
	EnvelopeBuildDuration metric.Float64Histogram

	// ConnectDuration tracks provider connect latency, including the
	// setup handshake.
	ConnectDuration metric.Float64Histogram

	// ActiveSessions tracks the number of live sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds, sized for connect
// handshakes and in-process budgeting.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesReceived, err = m.Int64Counter("auralis.frames.received",
		metric.WithDescription("Total inbound protocol frames by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesSent, err = m.Int64Counter("auralis.audio.bytes.sent",
		metric.WithDescription("Total outbound PCM bytes by provider."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesReceived, err = m.Int64Counter("auralis.audio.bytes.received",
		metric.WithDescription("Total inbound PCM bytes by provider."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.SendErrors, err = m.Int64Counter("auralis.send.errors",
		metric.WithDescription("Total non-fatal send failures by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ReconnectAttempts, err = m.Int64Counter("auralis.reconnect.attempts",
		metric.WithDescription("Total reconnection attempts by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.EnvelopeTruncations, err = m.Int64Counter("auralis.envelope.truncations",
		metric.WithDescription("Total budgeting calls that dropped content, by category."),
	); err != nil {
		return nil, err
	}
	if met.EnvelopeBuildDuration, err = m.Float64Histogram("auralis.envelope.build.duration",
		metric.WithDescription("Latency of context envelope assembly."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConnectDuration, err = m.Float64Histogram("auralis.connect.duration",
		metric.WithDescription("Latency of provider connect including setup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("auralis.active_sessions",
		metric.WithDescription("Number of live sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on
// first call from the global meter provider. Panics if instrument
// creation fails, which cannot happen with the global provider.
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

// RecordSendError increments the send-error counter with the standard
// attribute set.
func (m *Metrics) RecordSendError(ctx context.Context, provider, kind string) {
	m.SendErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordReconnectAttempt increments the reconnect counter with the
// standard attribute set. status is "ok" or "failed".
func (m *Metrics) RecordReconnectAttempt(ctx context.Context, provider, status string) {
	m.ReconnectAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}
