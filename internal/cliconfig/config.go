package cliconfig

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/instrumental/instrumental-go/pkg/instrumental"
	"github.com/instrumental/instrumental-go/pkg/log"
	"github.com/instrumental/instrumental-go/pkg/queue"
)

// DefaultFlushTimeout bounds how long a command waits for delivery before
// exiting.
const DefaultFlushTimeout = 10 * time.Second

// Config holds CLI configuration for instrumental.
type Config struct {
	APIKey       string
	Address      string
	QueueSize    int
	FlushTimeout time.Duration
	LogLevel     string
	MetricsAddr  string
	Disabled     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Address:      instrumental.DefaultAddress,
		QueueSize:    queue.DefaultCapacity,
		FlushTimeout: DefaultFlushTimeout,
		LogLevel:     "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api-key is required (flag, INSTRUMENTAL_API_KEY, or api_key in the config file)")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("flush timeout must be positive")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.APIKey != "" {
		c.APIKey = "*****"
	}
	return c
}

// Library converts the CLI configuration to the agent configuration.
func (c Config) Library() instrumental.Config {
	return instrumental.Config{
		APIKey:    c.APIKey,
		Address:   c.Address,
		QueueSize: c.QueueSize,
		Disabled:  c.Disabled,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setDisabled applies an "enabled" value to the disabled flag's destination.
func (s *configSetter) setDisabled(flag string, enabled *bool, dst *bool) {
	if enabled == nil || s.changed[flag] {
		return
	}
	*dst = !*enabled
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// parseBool accepts "true" and "1" as true, anything else as false.
func parseBool(value string) bool {
	return value == "true" || value == "1"
}
