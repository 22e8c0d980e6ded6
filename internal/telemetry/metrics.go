package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/propertyos"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Property metrics
	PropertyCreatesTotal       metric.Int64Counter
	PropertyCreateDenialsTotal metric.Int64Counter
	PropertyCreateErrorsTotal  metric.Int64Counter

	// Dashboard metrics
	StatsQueriesTotal  metric.Int64Counter
	StatsErrorsTotal   metric.Int64Counter
	StatsQueryDuration metric.Float64Histogram

	// Backend metrics
	StoreOperationsTotal   metric.Int64Counter
	StoreOperationDuration metric.Float64Histogram

	// Presentation metrics
	SetupPageRendersTotal metric.Int64Counter
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

	// Property metrics
	m.PropertyCreatesTotal, _ = meter.Int64Counter(
		"propertyos.properties.created.total",
		metric.WithDescription("Total number of properties created"),
		metric.WithUnit("{property}"),
	)

	m.PropertyCreateDenialsTotal, _ = meter.Int64Counter(
		"propertyos.properties.create_denied.total",
		metric.WithDescription("Total number of property creates rejected for missing sign-in or role"),
		metric.WithUnit("{request}"),
	)

	m.PropertyCreateErrorsTotal, _ = meter.Int64Counter(
		"propertyos.properties.create_errors.total",
		metric.WithDescription("Total number of property creates that failed validation or in the backend"),
		metric.WithUnit("{error}"),
	)

	// Dashboard metrics
	m.StatsQueriesTotal, _ = meter.Int64Counter(
		"propertyos.stats.queries.total",
		metric.WithDescription("Total number of dashboard summary aggregations"),
		metric.WithUnit("{query}"),
	)

	m.StatsErrorsTotal, _ = meter.Int64Counter(
		"propertyos.stats.errors.total",
		metric.WithDescription("Total number of dashboard summary aggregations that failed"),
		metric.WithUnit("{error}"),
	)

	m.StatsQueryDuration, _ = meter.Float64Histogram(
		"propertyos.stats.duration",
		metric.WithDescription("Duration of dashboard summary aggregations"),
		metric.WithUnit("ms"),
	)

	// Backend metrics
	m.StoreOperationsTotal, _ = meter.Int64Counter(
		"propertyos.store.operations.total",
		metric.WithDescription("Total number of backend operations"),
		metric.WithUnit("{operation}"),
	)

	m.StoreOperationDuration, _ = meter.Float64Histogram(
		"propertyos.store.operation.duration",
		metric.WithDescription("Duration of backend operations"),
		metric.WithUnit("ms"),
	)

	// Presentation metrics
	m.SetupPageRendersTotal, _ = meter.Int64Counter(
		"propertyos.web.setup_page.total",
		metric.WithDescription("Total number of setup instruction page renders"),
		metric.WithUnit("{render}"),
	)

	return m
}
