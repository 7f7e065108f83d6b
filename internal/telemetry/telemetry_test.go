package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulplan/haulplan/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "haulplan-test",
		OTLPEndpoint: "localhost:4317",
	})
	require.NoError(t, err)

	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("APP_ENV", "")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_ENABLED", "")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

		cfg := telemetry.ConfigFromEnv("haulplan-api", "1.2.3")
		assert.Equal(t, "haulplan-api", cfg.ServiceName)
		assert.Equal(t, "1.2.3", cfg.ServiceVersion)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
		assert.False(t, cfg.Enabled)
		assert.Zero(t, cfg.SampleRatio)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("OTEL_ENABLED", "true")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

		cfg := telemetry.ConfigFromEnv("haulplan-worker", "dev")
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 0.25, cfg.SampleRatio)
	})
}

func TestProviderMetrics(t *testing.T) {
	pm, err := telemetry.NewProviderMetrics()
	require.NoError(t, err)
	require.NotNil(t, pm)

	assert.NotPanics(t, func() {
		pm.RecordRequest("ors-directions", "directions", 120*time.Millisecond, nil)
		pm.RecordRequest("ors-geocode", "geocode.search", time.Second, errors.New("timeout"))
		pm.RecordCacheHit("ors-geocode", "geocode.search")
		pm.RecordCacheMiss("ors-directions", "directions")
	})
}

func TestTripMetrics(t *testing.T) {
	tm, err := telemetry.NewTripMetrics()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		tm.RecordTrip(context.Background(), telemetry.TripOutcome{
			Days:          3,
			Iterations:    27,
			Breaks:        2,
			DailyResets:   2,
			DistanceMiles: 1240.5,
			Duration:      850 * time.Millisecond,
		})
		tm.RecordTrip(context.Background(), telemetry.TripOutcome{
			ErrorKind: "LOCATION_NOT_FOUND",
			Duration:  30 * time.Millisecond,
		})
	})
}
