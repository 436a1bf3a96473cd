// Package instrumental is the entry point of the Instrumental agent.
//
// Example usage:
//
//	agent, err := instrumental.New(instrumental.Config{APIKey: "your-api-key"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Stop()
//
//	agent.Increment("signups")
//
// The types and functions here are aliases of
// github.com/instrumental/instrumental-go/pkg/instrumental.
package instrumental

import (
	"time"

	core "github.com/instrumental/instrumental-go/pkg/instrumental"
)

// Config holds the agent configuration.
// Use DefaultConfig() to get a Config with defaults and the API key from the
// environment.
type Config = core.Config

// Agent records metrics and delivers them in the background.
type Agent = core.Agent

// Option configures optional behavior of an Agent.
type Option = core.Option

// EventHandler receives agent events.
type EventHandler = core.EventHandler

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler = core.BaseEventHandler

// ConnState is the state of the collector connection.
type ConnState = core.ConnState

// Event types.
type (
	StateChangeEvent = core.StateChangeEvent
	SendSuccessEvent = core.SendSuccessEvent
	SendErrorEvent   = core.SendErrorEvent
	DropEvent        = core.DropEvent
	OverflowEvent    = core.OverflowEvent
)

// Errors.
var (
	ErrMissingAPIKey   = core.ErrMissingAPIKey
	ErrInvalidConfig   = core.ErrInvalidConfig
	ErrNotRunning      = core.ErrNotRunning
	ErrShutdownTimeout = core.ErrShutdownTimeout
)

// Version is the agent version reported to the collector.
const Version = core.Version

// DefaultAddress is the default collector endpoint.
const DefaultAddress = core.DefaultAddress

// New creates an agent and starts its delivery worker.
func New(cfg Config, opts ...Option) (*Agent, error) {
	return core.New(cfg, opts...)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// WithLogger sets a structured logger.
func WithLogger(logger core.Logger) Option {
	return core.WithLogger(logger)
}

// WithEventHandler sets a handler for agent events.
func WithEventHandler(handler EventHandler) Option {
	return core.WithEventHandler(handler)
}

// WithDialer replaces the dialer used to reach the collector.
func WithDialer(dialer core.Dialer) Option {
	return core.WithDialer(dialer)
}

// WithClock sets the time source for messages recorded without a timestamp.
func WithClock(clock func() time.Time) Option {
	return core.WithClock(clock)
}
