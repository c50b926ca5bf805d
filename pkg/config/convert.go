package config

import (
	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/internal/telemetry"
)

// ToLoggerConfig returns the logger settings.
func (c *Config) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// ToTelemetryConfig returns the tracing settings for a build version.
func (c *Config) ToTelemetryConfig(version string) telemetry.Config {
	t := telemetry.DefaultConfig()
	t.Enabled = c.Telemetry.Enabled
	t.Endpoint = c.Telemetry.Endpoint
	t.Insecure = c.Telemetry.Insecure
	t.SampleRate = c.Telemetry.SampleRate
	if version != "" {
		t.ServiceVersion = version
	}
	return t
}

// ToProfilingConfig returns the profiling settings for a build version.
func (c *Config) ToProfilingConfig(version string) telemetry.ProfilingConfig {
	p := telemetry.DefaultProfilingConfig()
	p.Enabled = c.Telemetry.Profiling.Enabled
	p.Endpoint = c.Telemetry.Profiling.Endpoint
	if len(c.Telemetry.Profiling.ProfileTypes) > 0 {
		p.ProfileTypes = c.Telemetry.Profiling.ProfileTypes
	}
	if version != "" {
		p.ServiceVersion = version
	}
	return p
}
