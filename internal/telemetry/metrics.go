package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/photoctl"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Authentication metrics
	AuthenticationsTotal      metric.Int64Counter
	AuthenticationErrorsTotal metric.Int64Counter
	LogoutNotifyFailuresTotal metric.Int64Counter

	// Renewal metrics
	RenewalsTotal        metric.Int64Counter
	RenewalFailuresTotal metric.Int64Counter
	RenewalsSkippedTotal metric.Int64Counter
	RenewalDuration      metric.Float64Histogram

	// Session metrics
	TeardownsTotal         metric.Int64Counter
	StorageCorruptionTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Authentication metrics
	m.AuthenticationsTotal, _ = meter.Int64Counter(
		"photoctl.auth.sessions.established.total",
		metric.WithDescription("Total number of sessions established by login or registration"),
		metric.WithUnit("{session}"),
	)

	m.AuthenticationErrorsTotal, _ = meter.Int64Counter(
		"photoctl.auth.errors.total",
		metric.WithDescription("Total number of failed login or registration attempts"),
		metric.WithUnit("{error}"),
	)

	m.LogoutNotifyFailuresTotal, _ = meter.Int64Counter(
		"photoctl.auth.logout.notify_failures.total",
		metric.WithDescription("Total number of logouts the server could not be told about"),
		metric.WithUnit("{error}"),
	)

	// Renewal metrics
	m.RenewalsTotal, _ = meter.Int64Counter(
		"photoctl.session.renewals.total",
		metric.WithDescription("Total number of successful token renewals"),
		metric.WithUnit("{renewal}"),
	)

	m.RenewalFailuresTotal, _ = meter.Int64Counter(
		"photoctl.session.renewals.failures.total",
		metric.WithDescription("Total number of token renewals rejected or failed"),
		metric.WithUnit("{renewal}"),
	)

	m.RenewalsSkippedTotal, _ = meter.Int64Counter(
		"photoctl.session.renewals.skipped.total",
		metric.WithDescription("Total number of renewal requests dropped because one was already in flight"),
		metric.WithUnit("{renewal}"),
	)

	m.RenewalDuration, _ = meter.Float64Histogram(
		"photoctl.session.renewals.duration",
		metric.WithDescription("Duration of token renewal round trips"),
		metric.WithUnit("ms"),
	)

	// Session metrics
	m.TeardownsTotal, _ = meter.Int64Counter(
		"photoctl.session.teardowns.total",
		metric.WithDescription("Total number of sessions torn down, by reason"),
		metric.WithUnit("{session}"),
	)

	m.StorageCorruptionTotal, _ = meter.Int64Counter(
		"photoctl.credentials.corruption.total",
		metric.WithDescription("Total number of stored credential entries that could not be decoded"),
		metric.WithUnit("{entry}"),
	)

	return m
}
