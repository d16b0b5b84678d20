package otel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "github.com/neomorfeo/tenantforge/internal/adapter/otel"
)

func TestSetup_Exporters(t *testing.T) {
	for _, exp := range []adapter.Exporter{adapter.ExporterStdout, adapter.ExporterNone} {
		t.Run(string(exp), func(t *testing.T) {
			providers, err := adapter.Setup(context.Background(), adapter.Config{
				ServiceName:    "test",
				ServiceVersion: "0.0.1",
				Environment:    "test",
				Exporter:       exp,
				SampleRatio:    0.5,
				MetricInterval: time.Minute,
			})
			require.NoError(t, err)
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestSetup_InvalidExporter(t *testing.T) {
	_, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName: "test",
		Environment: "test",
		Exporter:    "invalid",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"invalid"`)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := adapter.ConfigFromEnv()

	assert.Equal(t, "tenantforge", cfg.ServiceName)
	assert.Equal(t, "0.1.0", cfg.ServiceVersion)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, adapter.ExporterStdout, cfg.Exporter)
	assert.True(t, cfg.Insecure)
	assert.Zero(t, cfg.SampleRatio)
	assert.Zero(t, cfg.MetricInterval)
}

func TestConfigFromEnv_CustomValues(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "custom-service")
	t.Setenv("OTEL_SERVICE_VERSION", "1.0.0")
	t.Setenv("OTEL_ENVIRONMENT", "production")
	t.Setenv("OTEL_EXPORTER", "otlp")
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.25")
	t.Setenv("OTEL_METRIC_INTERVAL", "30s")

	cfg := adapter.ConfigFromEnv()

	assert.Equal(t, "custom-service", cfg.ServiceName)
	assert.Equal(t, "1.0.0", cfg.ServiceVersion)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, adapter.ExporterOTLP, cfg.Exporter)
	assert.False(t, cfg.Insecure)
	assert.InDelta(t, 0.25, cfg.SampleRatio, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.MetricInterval)
}
