package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/instrumental/instrumental-go/pkg/log"
)

var (
	// ErrInvalidTransition is returned when a transition is not allowed
	// from the current state.
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

	// ErrShutdownTimeout is returned when the worker does not exit in time.
	ErrShutdownTimeout = errors.New("lifecycle: shutdown timeout")
)

// ShutdownTimeout is the default maximum time to wait for the worker to exit.
const ShutdownTimeout = 30 * time.Second

// Manager holds the current connection state.
type Manager struct {
	mu           sync.RWMutex
	state        State
	since        time.Time
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a manager in StateDisconnected. logger and emitter may
// be nil.
func NewManager(logger log.Logger, emitter EventEmitter) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Manager{
		state:        StateDisconnected,
		since:        time.Now(),
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Since returns when the current state was entered.
func (m *Manager) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// TransitionTo moves to newState. It returns an error wrapping
// ErrInvalidTransition if the move is not allowed; the state is unchanged
// in that case.
func (m *Manager) TransitionTo(newState State, reason string) error {
	m.mu.Lock()
	oldState := m.state

	if !CanTransition(oldState, newState) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}

	m.state = newState
	m.since = time.Now()
	m.mu.Unlock()

	// Emit outside of lock
	if m.eventEmitter != nil {
		m.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	m.logger.Debug("connection state",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// Reset forces the state back to Disconnected from wherever it is. It is
// used after teardown, where every state must end up Disconnected
// regardless of how far the attempt got.
func (m *Manager) Reset(reason string) {
	if m.State() == StateDisconnected {
		return
	}
	m.mu.Lock()
	oldState := m.state
	m.state = StateDisconnected
	m.since = time.Now()
	m.mu.Unlock()

	if m.eventEmitter != nil {
		m.eventEmitter.OnStateChange(oldState, StateDisconnected, reason)
	}
	m.logger.Debug("connection state reset",
		log.String("from", oldState.String()),
		log.String("reason", reason),
	)
}

// AddWorker increments the worker count.
func (m *Manager) AddWorker() {
	m.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (m *Manager) WorkerDone() {
	m.wg.Done()
}

// WaitWithTimeout waits for all workers to finish. It returns
// ErrShutdownTimeout if they are still running after timeout.
func (m *Manager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		m.logger.Warn("shutdown timeout, worker still running",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
