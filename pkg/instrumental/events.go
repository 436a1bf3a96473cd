package instrumental

import (
	"time"

	"github.com/instrumental/instrumental-go/pkg/lifecycle"
	"github.com/instrumental/instrumental-go/pkg/log"
)

// ConnState is the state of the collector connection.
type ConnState = lifecycle.State

// Connection states.
const (
	StateDisconnected   = lifecycle.StateDisconnected
	StateConnecting     = lifecycle.StateConnecting
	StateAuthenticating = lifecycle.StateAuthenticating
	StateStreaming      = lifecycle.StateStreaming
	StateClosing        = lifecycle.StateClosing
)

// EventHandler receives agent events. Callbacks run synchronously on the
// goroutine that produced the event and must not block.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnSendSuccess(SendSuccessEvent)
	OnSendError(SendErrorEvent)
	OnDrop(DropEvent)
	OnOverflow(OverflowEvent)
}

// StateChangeEvent describes a connection state transition.
type StateChangeEvent struct {
	Previous ConnState
	Current  ConnState
	Reason   string
}

// SendSuccessEvent describes a message written to the collector.
type SendSuccessEvent struct {
	Message  string
	Duration time.Duration
}

// SendErrorEvent describes a failed connection cycle.
type SendErrorEvent struct {
	Error error

	// Failures is the consecutive failure count including this one.
	Failures int

	// Delay is the wait before the next connection attempt.
	Delay time.Duration
}

// DropEvent describes a message rejected because the queue was full.
type DropEvent struct {
	Message string
}

// OverflowEvent is emitted when the queue becomes full and again when it
// accepts messages after having been full.
type OverflowEvent struct {
	Full    bool
	Pending int
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only some callbacks.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnSendSuccess(SendSuccessEvent) {}
func (BaseEventHandler) OnSendError(SendErrorEvent)     {}
func (BaseEventHandler) OnDrop(DropEvent)               {}
func (BaseEventHandler) OnOverflow(OverflowEvent)       {}

// eventEmitterWrapper adapts EventHandler to the internal emitter
// interfaces. A panicking handler is logged and never reaches the recording
// call or the delivery worker.
type eventEmitterWrapper struct {
	handler EventHandler
	logger  log.Logger
}

func (e *eventEmitterWrapper) call(event string, fn func(EventHandler)) {
	if e.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				log.String("event", event),
				log.Any("panic", r),
			)
		}
	}()
	fn(e.handler)
}

func (e *eventEmitterWrapper) OnStateChange(previous, current lifecycle.State, reason string) {
	e.call("state_change", func(h EventHandler) {
		h.OnStateChange(StateChangeEvent{
			Previous: previous,
			Current:  current,
			Reason:   reason,
		})
	})
}

func (e *eventEmitterWrapper) OnSendSuccess(message string, duration time.Duration) {
	e.call("send_success", func(h EventHandler) {
		h.OnSendSuccess(SendSuccessEvent{Message: message, Duration: duration})
	})
}

func (e *eventEmitterWrapper) OnSendError(err error, failures int, delay time.Duration) {
	e.call("send_error", func(h EventHandler) {
		h.OnSendError(SendErrorEvent{Error: err, Failures: failures, Delay: delay})
	})
}

func (e *eventEmitterWrapper) onDrop(msg string) {
	e.call("drop", func(h EventHandler) {
		h.OnDrop(DropEvent{Message: msg})
	})
}

func (e *eventEmitterWrapper) onFull(pending int) {
	e.call("overflow", func(h EventHandler) {
		h.OnOverflow(OverflowEvent{Full: true, Pending: pending})
	})
}

func (e *eventEmitterWrapper) onRecovered(pending int) {
	e.call("overflow", func(h EventHandler) {
		h.OnOverflow(OverflowEvent{Full: false, Pending: pending})
	})
}
