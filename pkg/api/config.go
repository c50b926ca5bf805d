package api

import (
	"net"
	"strconv"
	"time"
)

// APIConfig configures the monitoring HTTP server.
//
// The server exposes health probes, the Prometheus scrape endpoint and a
// small read-only view of sessions and user files. It never modifies state.
type APIConfig struct {
	// Enabled controls whether the API server is started.
	// Default: true
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// BindAddress is the interface to listen on.
	// Default: "0.0.0.0"
	BindAddress string `mapstructure:"bind_address" json:"bind_address" yaml:"bind_address"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8081
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" json:"port" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
}

// DefaultPort is the API port used when none is configured.
const DefaultPort = 8081

// ApplyDefaults fills in zero values. Enabled is left alone.
func (c *APIConfig) ApplyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// ListenAddress returns host:port for net.Listen.
func (c APIConfig) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}
