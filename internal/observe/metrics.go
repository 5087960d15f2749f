// Package observe provides application-wide observability primitives for
// SignLink: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all SignLink metrics.
const meterName = "github.com/junghee-19/SignLink"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per adapter ---

	// PoseDuration tracks pose-recognition request latency.
	PoseDuration metric.Float64Histogram

	// TranslateDuration tracks translation request latency.
	TranslateDuration metric.Float64Histogram

	// LandmarkDuration tracks landmark template fetch latency.
	LandmarkDuration metric.Float64Histogram

	// --- Counters ---

	// AdapterRequests counts outbound adapter calls. Use with attributes:
	//   attribute.String("adapter", ...), attribute.String("status", ...)
	AdapterRequests metric.Int64Counter

	// AdapterErrors counts failed adapter calls. Use with attribute:
	//   attribute.String("adapter", ...)
	AdapterErrors metric.Int64Counter

	// Messages counts chat log appends. Use with attribute:
	//   attribute.String("sender", ...)
	Messages metric.Int64Counter

	// SignsQueued counts sign clips added to playback queues.
	SignsQueued metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live chat sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// the pose and translation round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PoseDuration, err = m.Float64Histogram("signlink.pose.duration",
		metric.WithDescription("Latency of pose-recognition requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("signlink.translate.duration",
		metric.WithDescription("Latency of translation requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LandmarkDuration, err = m.Float64Histogram("signlink.landmark.duration",
		metric.WithDescription("Latency of landmark template fetches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AdapterRequests, err = m.Int64Counter("signlink.adapter.requests",
		metric.WithDescription("Total adapter requests by adapter and status."),
	); err != nil {
		return nil, err
	}
	if met.AdapterErrors, err = m.Int64Counter("signlink.adapter.errors",
		metric.WithDescription("Total adapter errors by adapter."),
	); err != nil {
		return nil, err
	}
	if met.Messages, err = m.Int64Counter("signlink.messages",
		metric.WithDescription("Total chat messages by sender."),
	); err != nil {
		return nil, err
	}
	if met.SignsQueued, err = m.Int64Counter("signlink.signs.queued",
		metric.WithDescription("Total sign clips queued for playback."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("signlink.active_sessions",
		metric.WithDescription("Number of live chat sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("signlink.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// RecordAdapter records one outbound adapter call: a request count with a
// status attribute, the latency histogram for the adapter, and an error count
// on failure. A nil receiver is a no-op so uninstrumented callers need no
// guard.
func (m *Metrics) RecordAdapter(ctx context.Context, adapter string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.AdapterErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("adapter", adapter)),
		)
	}
	m.AdapterRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("adapter", adapter),
			attribute.String("status", status),
		),
	)

	var hist metric.Float64Histogram
	switch adapter {
	case "pose":
		hist = m.PoseDuration
	case "translate":
		hist = m.TranslateDuration
	case "landmark":
		hist = m.LandmarkDuration
	}
	if hist != nil {
		hist.Record(ctx, d.Seconds())
	}
}

// RecordMessage records one chat log append. Nil-safe.
func (m *Metrics) RecordMessage(ctx context.Context, sender string) {
	if m == nil {
		return
	}
	m.Messages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("sender", sender)),
	)
}

// RecordSignsQueued records n sign clips added to a playback queue. Nil-safe.
func (m *Metrics) RecordSignsQueued(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SignsQueued.Add(ctx, int64(n))
}

// SessionStarted increments the active session gauge. Nil-safe.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the active session gauge. Nil-safe.
func (m *Metrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
