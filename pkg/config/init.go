package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# DittoPad Configuration File
#
# Every key can be overridden with an environment variable: upper-case the
# dotted path, replace dots with underscores and prefix DITTOPAD_, e.g.
#   DITTOPAD_ADAPTERS_NOTEPAD_PORT=9000
#   DITTOPAD_STORAGE_TYPE=memory

`

// sampleComments annotates keys of the generated file, by dotted path.
var sampleComments = map[string]string{
	"logging":                                "# Log output. level: DEBUG, INFO, WARN, ERROR. format: text or json.\n# output: stdout, stderr or a file path.",
	"telemetry":                              "# OpenTelemetry tracing over OTLP gRPC. One span per session and command.",
	"telemetry.sample_rate":                  "# Fraction of sessions traced, 0.0 to 1.0.",
	"telemetry.profiling":                    "# Pyroscope continuous profiling.",
	"shutdown_timeout":                       "# How long open sessions may drain on shutdown before they are closed.",
	"metrics":                                "# Prometheus metrics, served on the API server at /metrics.",
	"api":                                    "# Read-only monitoring API: /health, /health/ready, /api/v1/sessions.",
	"adapters":                               "# Protocol listeners.",
	"adapters.notepad.max_connections":       "# 0 means unlimited.",
	"adapters.notepad.read_buffer_size":      "# Largest single read from a client. Each read is one message.",
	"adapters.notepad.idle_timeout":          "# Close sessions idle for this long. 0 disables the timeout.",
	"adapters.notepad.release_on_disconnect": "# Free the username when a client drops without EXIT.\n# When false the name stays taken until restart.",
	"storage":                                "# Where user files live.",
	"storage.type":                           "# One of: filesystem, memory, s3, badger.",
	"storage.filesystem":                     "# One directory per user under root.",
	"storage.s3":                             "# One key prefix per user. Leave credentials empty to use the AWS default chain.",
	"storage.badger":                         "# Embedded BadgerDB. Keys: path, in_memory, sync_writes.",
}

// InitConfig writes a sample config to the default location and returns
// its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default sample config to path.
func InitConfigToPath(path string, force bool) error {
	return WriteSampleConfig(path, GetDefaultConfig(), force)
}

// WriteSampleConfig writes cfg as a commented YAML file.
func WriteSampleConfig(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := renderSample(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func renderSample(cfg *Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	annotate(&doc, "")

	var buf bytes.Buffer
	buf.WriteString(sampleHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return buf.Bytes(), nil
}

func annotate(n *yaml.Node, prefix string) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		path := key.Value
		if prefix != "" {
			path = prefix + "." + key.Value
		}
		if c, ok := sampleComments[path]; ok {
			key.HeadComment = c
		}
		annotate(value, path)
	}
}
