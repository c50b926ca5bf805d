package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittopad/pkg/adapter/notepad"
	"github.com/marmos91/dittopad/pkg/api"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced, explicit values are kept. Booleans cannot be
// told apart from "unset" here; Load gets their defaults from viper.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyAPIDefaults(&cfg.API)
	applyAdapterDefaults(cfg)
	applyStorageDefaults(&cfg.Storage)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyAPIDefaults(cfg *api.APIConfig) {
	cfg.ApplyDefaults()
}

// applyAdapterDefaults also hands the top-level shutdown timeout to each
// adapter.
func applyAdapterDefaults(cfg *Config) {
	cfg.Adapters.Notepad.ShutdownTimeout = cfg.ShutdownTimeout
	cfg.Adapters.Notepad.ApplyDefaults()
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = StorageFilesystem
	}
	if cfg.Filesystem.Root == "" {
		cfg.Filesystem.Root = DefaultStorageRoot
	}
	if cfg.Filesystem.DirMode == 0 {
		cfg.Filesystem.DirMode = 0755
	}
	if cfg.Filesystem.FileMode == 0 {
		cfg.Filesystem.FileMode = 0644
	}
}

// GetDefaultConfig returns a Config with every default applied, including
// the enabled flags.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
		API:     api.APIConfig{Enabled: true},
		Adapters: AdaptersConfig{
			Notepad: notepad.DefaultConfig(),
		},
		Storage: StorageConfig{
			Filesystem: FilesystemStoreConfig{CreateRoot: true},
			S3:         S3StoreConfig{KeyPrefix: "users/"},
			Badger:     map[string]any{"path": DefaultBadgerPath},
		},
	}
	cfg.Telemetry.Insecure = true

	ApplyDefaults(cfg)
	return cfg
}
