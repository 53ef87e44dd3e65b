package observability

import (
	"strings"

	"github.com/smallbiznis/subsync/internal/config"
)

// Config is the observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "subsync"
	}
	ratio := cfg.Telemetry.OtelSampleRate
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}
	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.Telemetry.LogLevel,
		LogFormat:            cfg.Telemetry.LogFormat,
		OtelEnabled:          cfg.Telemetry.OtelEnabled,
		OtelExporterEndpoint: cfg.Telemetry.OtelEndpoint,
		OtelExporterProtocol: cfg.Telemetry.OtelProtocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug reports whether verbose diagnostics are on: debug level or a
// non-production environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
