package observability

import (
	"testing"

	"github.com/smallbiznis/societyops/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "development",
		AppVersion:  "1.2.3",
		SocietyName: " Green Meadows CHS ",
		Telemetry:   config.TelemetryConfig{SamplingRatio: 0.5},
	})

	assert.Equal(t, "societyops", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "Green Meadows CHS", cfg.Society)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigClampsSamplingRatio(t *testing.T) {
	cfg := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{SamplingRatio: 4}})
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
}

func TestDebugFollowsLogLevel(t *testing.T) {
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.False(t, Config{LogLevel: "info", Environment: "production"}.Debug())
}

func TestDerivedConfigs(t *testing.T) {
	cfg := Config{
		ServiceName:          "societyops-api",
		Environment:          "production",
		Society:              "Green Meadows CHS",
		LogLevel:             "warn",
		OtelEnabled:          true,
		OtelExporterEndpoint: "collector:4317",
		OtelExporterProtocol: "grpc",
		OtelSamplingRatio:    0.25,
	}

	logCfg := cfg.Logger()
	assert.Equal(t, "Green Meadows CHS", logCfg.Society)
	assert.False(t, logCfg.Debug)

	traceCfg := cfg.Tracing()
	assert.True(t, traceCfg.Enabled)
	assert.Equal(t, 0.25, traceCfg.SamplingRatio)

	metricCfg := cfg.Metrics()
	assert.Equal(t, "collector:4317", metricCfg.ExporterEndpoint)
	assert.Equal(t, "societyops-api", metricCfg.ServiceName)
}
