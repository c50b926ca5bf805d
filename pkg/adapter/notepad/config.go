package notepad

import (
	"fmt"
	"time"

	"github.com/marmos91/dittopad/internal/bytesize"
	"github.com/marmos91/dittopad/pkg/adapter"
)

// Defaults reproduce the classic server: every interface on 8080, 1 KiB
// reads, no limits and no idle timeout.
const (
	DefaultBindAddress     = "0.0.0.0"
	DefaultPort            = 8080
	DefaultReadBufferSize  = bytesize.KiB
	DefaultShutdownTimeout = 30 * time.Second

	// MaxReadBufferSize caps a single message.
	MaxReadBufferSize = bytesize.MiB
)

// Config configures the notepad adapter.
type Config struct {
	// Enabled controls whether the server starts the adapter.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// BindAddress is the listen address. Default "0.0.0.0".
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" json:"bind_address,omitempty"`

	// Port is the TCP port. Default 8080.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port" json:"port,omitempty"`

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections" json:"max_connections,omitempty"`

	// ReadBufferSize is the largest chunk read from the socket at once.
	// Each read is handled as one message. Default 1Ki.
	ReadBufferSize bytesize.ByteSize `mapstructure:"read_buffer_size" yaml:"read_buffer_size" json:"read_buffer_size,omitempty"`

	// IdleTimeout closes connections that send nothing for this long. The
	// timeout counts as a socket error. 0 disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0" yaml:"idle_timeout" json:"idle_timeout,omitempty"`

	// ReleaseOnDisconnect frees the username when a registered session ends
	// any way other than EXIT. When false a dropped client keeps its name
	// until the process restarts.
	ReleaseOnDisconnect bool `mapstructure:"release_on_disconnect" yaml:"release_on_disconnect" json:"release_on_disconnect"`

	// MetricsLogInterval enables a periodic connection count log line.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0" yaml:"metrics_log_interval" json:"metrics_log_interval,omitempty"`

	// ShutdownTimeout bounds the graceful drain. Set from the top-level
	// shutdown_timeout.
	ShutdownTimeout time.Duration `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultConfig returns an enabled adapter with default settings.
func DefaultConfig() Config {
	c := Config{Enabled: true}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values. Enabled is left alone so an explicit
// false survives.
func (c *Config) ApplyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = DefaultBindAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks ranges that struct tags cannot express.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.ReadBufferSize == 0 || c.ReadBufferSize > MaxReadBufferSize {
		return fmt.Errorf("invalid read_buffer_size %s: must be between 1 and %s", c.ReadBufferSize, MaxReadBufferSize)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid idle_timeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

func (c *Config) baseConfig() adapter.BaseConfig {
	return adapter.BaseConfig{
		BindAddress:        c.BindAddress,
		Port:               c.Port,
		MaxConnections:     c.MaxConnections,
		ShutdownTimeout:    c.ShutdownTimeout,
		MetricsLogInterval: c.MetricsLogInterval,
	}
}
