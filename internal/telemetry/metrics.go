package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/haulplan/haulplan/internal/telemetry"

// ProviderMetrics holds metrics for external provider calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring geocoding and routing calls.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records metrics for a provider request.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detached from the request so cancellation never drops a data point.
	ctx := context.TODO()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit for a provider.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.TODO(), 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	))
}

// RecordCacheMiss records a cache miss for a provider.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.TODO(), 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	))
}

// TripOutcome summarizes one planned trip for TripMetrics.
type TripOutcome struct {
	Days           int
	Iterations     int
	Breaks         int
	DailyResets    int
	WeeklyRestarts int
	DistanceMiles  float64
	Duration       time.Duration
	ErrorKind      string // empty on success
}

// TripMetrics holds metrics for trip planning.
type TripMetrics struct {
	planned    metric.Int64Counter
	duration   metric.Float64Histogram
	days       metric.Int64Histogram
	iterations metric.Int64Histogram
	rests      metric.Int64Counter
	miles      metric.Float64Histogram
}

// NewTripMetrics creates trip planning instruments.
func NewTripMetrics() (*TripMetrics, error) {
	meter := otel.Meter(meterName)

	planned, err := meter.Int64Counter(
		"trip.planned.total",
		metric.WithDescription("Trips planned, by outcome"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"trip.plan.duration",
		metric.WithDescription("Wall time to plan a trip in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	days, err := meter.Int64Histogram(
		"trip.days",
		metric.WithDescription("Daily logs per planned trip"),
		metric.WithUnit("{day}"),
	)
	if err != nil {
		return nil, err
	}

	iterations, err := meter.Int64Histogram(
		"trip.engine.iterations",
		metric.WithDescription("Decision loop iterations per planned trip"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, err
	}

	rests, err := meter.Int64Counter(
		"trip.rests.total",
		metric.WithDescription("Scheduled breaks, daily resets and weekly restarts"),
		metric.WithUnit("{rest}"),
	)
	if err != nil {
		return nil, err
	}

	miles, err := meter.Float64Histogram(
		"trip.distance",
		metric.WithDescription("Trip distance in miles"),
		metric.WithUnit("[mi_i]"),
	)
	if err != nil {
		return nil, err
	}

	return &TripMetrics{
		planned:    planned,
		duration:   duration,
		days:       days,
		iterations: iterations,
		rests:      rests,
		miles:      miles,
	}, nil
}

// RecordTrip records one planning attempt.
func (m *TripMetrics) RecordTrip(ctx context.Context, o TripOutcome) {
	outcome := "ok"
	if o.ErrorKind != "" {
		outcome = o.ErrorKind
	}
	attrs := metric.WithAttributes(attribute.String("trip.outcome", outcome))

	m.planned.Add(ctx, 1, attrs)
	m.duration.Record(ctx, o.Duration.Seconds(), attrs)
	if o.ErrorKind != "" {
		return
	}

	m.days.Record(ctx, int64(o.Days))
	m.iterations.Record(ctx, int64(o.Iterations))
	m.miles.Record(ctx, o.DistanceMiles)
	m.rests.Add(ctx, int64(o.Breaks), metric.WithAttributes(attribute.String("rest.kind", "break")))
	m.rests.Add(ctx, int64(o.DailyResets), metric.WithAttributes(attribute.String("rest.kind", "daily_reset")))
	m.rests.Add(ctx, int64(o.WeeklyRestarts), metric.WithAttributes(attribute.String("rest.kind", "weekly_restart")))
}
