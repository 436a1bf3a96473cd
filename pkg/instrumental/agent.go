package instrumental

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/instrumental/instrumental-go/pkg/collector"
	"github.com/instrumental/instrumental-go/pkg/lifecycle"
	"github.com/instrumental/instrumental-go/pkg/log"
	"github.com/instrumental/instrumental-go/pkg/protocol"
	"github.com/instrumental/instrumental-go/pkg/queue"
)

// Version is the agent version reported in the handshake.
const Version = "1.0.0"

// InvalidMetric is incremented whenever a metric with an invalid name is
// recorded.
const InvalidMetric = "agent.invalid_metric"

// flushPollInterval is how often Flush checks the queue depth.
const flushPollInterval = 10 * time.Millisecond

// Agent records metrics and delivers them in the background.
// All methods are safe for concurrent use.
type Agent struct {
	config Config
	opts   options
	logger log.Logger

	queue     *queue.Queue
	lifecycle *lifecycle.Manager
	enabled   atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// New validates cfg, starts the delivery worker and returns the agent.
// It returns ErrMissingAPIKey without starting anything when cfg.APIKey is
// empty.
func New(cfg Config, opts ...Option) (*Agent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler, logger: o.logger}
	q := queue.New(cfg.QueueSize, o.logger, queue.Hooks{
		OnFull:      emitter.onFull,
		OnRecovered: emitter.onRecovered,
		OnDrop:      emitter.onDrop,
	})
	manager := lifecycle.NewManager(o.logger, emitter)

	worker := collector.New(collector.Config{
		Address:  cfg.Address,
		ClientID: DefaultClientID,
		Version:  Version,
		APIKey:   cfg.APIKey,
		Backoff:  cfg.backoffPolicy(),
		Conn:     cfg.connOptions(),
	}, q, o.dialer, manager, o.logger, emitter)

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		config:    cfg,
		opts:      o,
		logger:    o.logger,
		queue:     q,
		lifecycle: manager,
		cancel:    cancel,
	}
	a.enabled.Store(!cfg.Disabled)

	a.logger.Info("agent started",
		log.Addr(cfg.Address),
		log.String("api_key", cfg.MaskedAPIKey()),
		log.Int("queue_size", cfg.QueueSize),
		log.Bool("enabled", !cfg.Disabled),
	)

	manager.AddWorker()
	go func() {
		defer manager.WorkerDone()
		err := worker.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
			a.logger.Error("delivery worker stopped", log.Err(err))
		}
	}()

	return a, nil
}

// Gauge records value for name at the current time.
func (a *Agent) Gauge(name string, value float64) bool {
	return a.GaugeAt(name, value, time.Time{}, 1)
}

// GaugeAt records value for name at the given time with a sample count.
// A zero time means now.
func (a *Agent) GaugeAt(name string, value float64, at time.Time, count int) bool {
	if !a.Enabled() || !a.validMetric(name, value) {
		return false
	}
	return a.enqueue(protocol.Gauge(name, value, a.timestamp(at), count))
}

// Increment adds 1 to name.
func (a *Agent) Increment(name string) bool {
	return a.IncrementAt(name, 1, time.Time{}, 1)
}

// IncrementBy adds value to name.
func (a *Agent) IncrementBy(name string, value float64) bool {
	return a.IncrementAt(name, value, time.Time{}, 1)
}

// IncrementAt adds value to name at the given time with a sample count.
// A zero time means now.
func (a *Agent) IncrementAt(name string, value float64, at time.Time, count int) bool {
	if !a.Enabled() || !a.validMetric(name, value) {
		return false
	}
	return a.enqueue(protocol.Increment(name, value, a.timestamp(at), count))
}

// Notice records an event annotation lasting duration, starting now.
func (a *Agent) Notice(message string, duration time.Duration) bool {
	return a.NoticeAt(message, time.Time{}, duration)
}

// NoticeAt records an event annotation starting at the given time.
// Messages containing line breaks are rejected.
func (a *Agent) NoticeAt(message string, at time.Time, duration time.Duration) bool {
	if !a.Enabled() {
		return false
	}
	if !protocol.ValidNotice(message) {
		a.logger.Warn("invalid notice message", log.String("message", message))
		return false
	}
	return a.enqueue(protocol.Notice(message, a.timestamp(at), duration))
}

// Time runs fn and records its duration in seconds as a gauge. The gauge
// is recorded even if fn panics.
func (a *Agent) Time(name string, fn func()) bool {
	return a.timeFn(name, fn, 1)
}

// TimeMs is Time with the duration recorded in milliseconds.
func (a *Agent) TimeMs(name string, fn func()) bool {
	return a.timeFn(name, fn, 1000)
}

func (a *Agent) timeFn(name string, fn func(), multiplier float64) (accepted bool) {
	start := time.Now()
	defer func() {
		accepted = a.Gauge(name, time.Since(start).Seconds()*multiplier)
	}()
	fn()
	return false
}

// Send enqueues a pre-formatted protocol line such as
// "gauge name 1 1700000000 1". The line must not contain line breaks.
func (a *Agent) Send(line string) bool {
	if !a.Enabled() {
		return false
	}
	if !protocol.ValidLine(line) {
		a.logger.Warn("invalid message line", log.String("line", line))
		return false
	}
	return a.enqueue(line)
}

func (a *Agent) enqueue(line string) bool {
	return a.queue.Offer(line)
}

func (a *Agent) validMetric(name string, value float64) bool {
	if !protocol.ValidMetricName(name) {
		a.logger.Warn("invalid metric name", log.String("name", name))
		if name != InvalidMetric {
			a.Increment(InvalidMetric)
		}
		return false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		a.logger.Warn("invalid metric value",
			log.String("name", name),
			log.Float64("value", value),
		)
		return false
	}
	return true
}

func (a *Agent) timestamp(at time.Time) time.Time {
	if at.IsZero() {
		return a.opts.clock()
	}
	return at
}

// Pending returns the number of messages not yet written, including the one
// in flight.
func (a *Agent) Pending() int {
	return a.queue.Len()
}

// Dropped returns how many messages were rejected.
func (a *Agent) Dropped() uint64 {
	return a.queue.Dropped()
}

// Enabled reports whether recording calls enqueue messages.
func (a *Agent) Enabled() bool {
	return a.enabled.Load()
}

// SetEnabled turns recording on or off. Messages already queued are still
// delivered.
func (a *Agent) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) != enabled {
		a.logger.Info("recording toggled", log.Bool("enabled", enabled))
	}
}

// State returns the collector connection state.
func (a *Agent) State() ConnState {
	return a.lifecycle.State()
}

// Flush waits until every queued message was written or ctx is done.
func (a *Agent) Flush(ctx context.Context) error {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return ErrNotRunning
	}

	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()

	for {
		if a.queue.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("flush: %d messages pending: %w", a.queue.Len(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop shuts the worker down and discards undelivered messages.
// It waits up to Config.ShutdownTimeout for the worker to exit and returns
// ErrShutdownTimeout if it did not. Calling Stop again returns
// ErrNotRunning.
func (a *Agent) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return ErrNotRunning
	}
	a.stopped = true
	a.cancel()
	a.queue.Close()
	a.mu.Unlock()

	err := a.lifecycle.WaitWithTimeout(a.config.ShutdownTimeout)

	if n := a.queue.Discard(); n > 0 {
		a.logger.Warn("discarded undelivered messages", log.Int("count", n))
	}
	a.logger.Info("agent stopped", log.Uint64("dropped", a.queue.Dropped()))
	return err
}
