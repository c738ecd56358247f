package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/wardstock"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Request metrics
	RequestsTotal       metric.Int64Counter
	RequestErrorsTotal  metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	NetworkFailureTotal metric.Int64Counter

	// Session metrics
	RefreshAttemptsTotal metric.Int64Counter
	RefreshFailuresTotal metric.Int64Counter
	RefreshCoalesced     metric.Int64Counter
	ReplaysTotal         metric.Int64Counter
	SessionClearsTotal   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider())
	})
	return metrics
}

// NewMetrics creates and registers all metric instruments with the given provider
func NewMetrics(provider metric.MeterProvider) *Metrics {
	meter := provider.Meter(meterName)

	m := &Metrics{}

	// Request metrics
	m.RequestsTotal, _ = meter.Int64Counter(
		"wardstock.http.requests.total",
		metric.WithDescription("Total number of API requests sent, replays included"),
		metric.WithUnit("{request}"),
	)

	m.RequestErrorsTotal, _ = meter.Int64Counter(
		"wardstock.http.errors.total",
		metric.WithDescription("Total number of API responses with a non-2xx status"),
		metric.WithUnit("{response}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"wardstock.http.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)

	m.NetworkFailureTotal, _ = meter.Int64Counter(
		"wardstock.http.network_failures.total",
		metric.WithDescription("Total number of requests that received no response"),
		metric.WithUnit("{request}"),
	)

	// Session metrics
	m.RefreshAttemptsTotal, _ = meter.Int64Counter(
		"wardstock.session.refresh.attempts.total",
		metric.WithDescription("Total number of calls made to the token refresh endpoint"),
		metric.WithUnit("{refresh}"),
	)

	m.RefreshFailuresTotal, _ = meter.Int64Counter(
		"wardstock.session.refresh.failures.total",
		metric.WithDescription("Total number of rejected or failed token refreshes"),
		metric.WithUnit("{refresh}"),
	)

	m.RefreshCoalesced, _ = meter.Int64Counter(
		"wardstock.session.refresh.coalesced.total",
		metric.WithDescription("Total number of 401 responses that reused another request's refresh"),
		metric.WithUnit("{request}"),
	)

	m.ReplaysTotal, _ = meter.Int64Counter(
		"wardstock.session.replays.total",
		metric.WithDescription("Total number of requests replayed after a refresh"),
		metric.WithUnit("{request}"),
	)

	m.SessionClearsTotal, _ = meter.Int64Counter(
		"wardstock.session.clears.total",
		metric.WithDescription("Total number of sessions cleared after an unrecoverable authentication failure"),
		metric.WithUnit("{session}"),
	)

	return m
}
