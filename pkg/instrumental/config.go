package instrumental

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/instrumental/instrumental-go/pkg/backoff"
	"github.com/instrumental/instrumental-go/pkg/conn"
	"github.com/instrumental/instrumental-go/pkg/lifecycle"
	"github.com/instrumental/instrumental-go/pkg/queue"
)

// Defaults.
const (
	DefaultAddress  = "collector.instrumentalapp.com:8000"
	DefaultClientID = "go/instrumental_agent"

	// EnvAPIKey is read by DefaultConfig.
	EnvAPIKey = "INSTRUMENTAL_API_KEY"
)

// Config holds the agent configuration. Zero values are replaced by
// defaults in New.
type Config struct {
	// APIKey authenticates with the collector. Required.
	APIKey string

	// Address is the collector host:port.
	Address string

	// Disabled starts the agent with recording turned off.
	Disabled bool

	// QueueSize is the maximum number of buffered messages.
	QueueSize int

	// Reconnect backoff: min(BackoffCap, failures^BackoffExponent * BackoffUnit).
	BackoffCap      time.Duration
	BackoffExponent float64
	BackoffUnit     time.Duration

	// Socket timeouts.
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ProbeTimeout     time.Duration // zero checks liveness without waiting
	DrainTimeout     time.Duration

	// ShutdownTimeout bounds how long Stop waits for the worker.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with defaults applied and the API key
// taken from INSTRUMENTAL_API_KEY.
func DefaultConfig() Config {
	cfg := Config{APIKey: os.Getenv(EnvAPIKey)}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.QueueSize == 0 {
		c.QueueSize = queue.DefaultCapacity
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = backoff.DefaultCap
	}
	if c.BackoffExponent == 0 {
		c.BackoffExponent = backoff.DefaultExponent
	}
	if c.BackoffUnit == 0 {
		c.BackoffUnit = backoff.DefaultUnit
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = conn.DefaultDialTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = conn.DefaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = conn.DefaultWriteTimeout
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = conn.DefaultDrainTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = lifecycle.ShutdownTimeout
	}
}

// Validate checks the configuration. A missing API key yields
// ErrMissingAPIKey; other problems wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("%w: address %q: %v", ErrInvalidConfig, c.Address, err)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.BackoffExponent < 0 {
		return fmt.Errorf("%w: backoff exponent must not be negative", ErrInvalidConfig)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"backoff cap", c.BackoffCap},
		{"backoff unit", c.BackoffUnit},
		{"dial timeout", c.DialTimeout},
		{"handshake timeout", c.HandshakeTimeout},
		{"write timeout", c.WriteTimeout},
		{"probe timeout", c.ProbeTimeout},
		{"drain timeout", c.DrainTimeout},
		{"shutdown timeout", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidConfig, d.name, d.value)
		}
	}
	return nil
}

// MaskedAPIKey returns the API key in a form safe to log.
func (c Config) MaskedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	return "*****"
}

func (c Config) backoffPolicy() backoff.Policy {
	return backoff.Policy{
		Cap:      c.BackoffCap,
		Exponent: c.BackoffExponent,
		Unit:     c.BackoffUnit,
	}
}

func (c Config) connOptions() conn.Options {
	return conn.Options{
		DialTimeout:      c.DialTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		ProbeTimeout:     c.ProbeTimeout,
		DrainTimeout:     c.DrainTimeout,
	}
}
