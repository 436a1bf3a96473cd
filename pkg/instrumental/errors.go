package instrumental

import (
	"errors"

	"github.com/instrumental/instrumental-go/pkg/lifecycle"
)

var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("instrumental: api key is required")

	// ErrInvalidConfig is returned by New when a configuration value is out
	// of range.
	ErrInvalidConfig = errors.New("instrumental: invalid configuration")

	// ErrNotRunning is returned by Stop and Flush after the agent stopped.
	ErrNotRunning = errors.New("instrumental: agent is not running")

	// ErrShutdownTimeout is returned by Stop when the worker did not exit
	// within the shutdown timeout.
	ErrShutdownTimeout = lifecycle.ErrShutdownTimeout
)
