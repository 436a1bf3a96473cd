package instrumental

import (
	"time"

	"github.com/instrumental/instrumental-go/pkg/conn"
	"github.com/instrumental/instrumental-go/pkg/log"
)

// Logger is the structured logger accepted by WithLogger.
type Logger = log.Logger

// Dialer opens the collector connection. *net.Dialer satisfies it.
type Dialer = conn.Dialer

// Option configures optional behavior of an Agent.
type Option func(*options)

type options struct {
	logger       log.Logger
	eventHandler EventHandler
	dialer       conn.Dialer
	clock        func() time.Time
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clock:  time.Now,
	}
}

// WithLogger sets a logger. If not provided, nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for agent events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithDialer replaces the dialer used to reach the collector.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithClock sets the time source for messages recorded without an explicit
// timestamp.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
