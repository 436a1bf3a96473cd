package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/instrumental/instrumental-go/pkg/backoff"
	"github.com/instrumental/instrumental-go/pkg/conn"
	"github.com/instrumental/instrumental-go/pkg/lifecycle"
	"github.com/instrumental/instrumental-go/pkg/log"
	"github.com/instrumental/instrumental-go/pkg/queue"
)

// Config contains what the worker needs to reach and authenticate with the
// collector.
type Config struct {
	Address  string
	ClientID string
	Version  string
	APIKey   string

	Backoff backoff.Policy
	Conn    conn.Options
}

// SendEventEmitter is called on send success or failure.
type SendEventEmitter interface {
	// OnSendSuccess is called after a message was written to the socket.
	OnSendSuccess(message string, duration time.Duration)

	// OnSendError is called after a connection cycle failed. failures is
	// the consecutive failure count including this one, delay the wait
	// before the next attempt.
	OnSendError(err error, failures int, delay time.Duration)
}

// Collector is the delivery worker.
type Collector struct {
	config  Config
	queue   *queue.Queue
	dialer  conn.Dialer
	state   *lifecycle.Manager
	logger  log.Logger
	emitter SendEventEmitter

	// held is the in-flight message; only the Run goroutine touches it.
	held    string
	holding bool
}

// New creates a worker draining q. dialer, state, logger and emitter may be
// nil.
func New(
	config Config,
	q *queue.Queue,
	dialer conn.Dialer,
	state *lifecycle.Manager,
	logger log.Logger,
	emitter SendEventEmitter,
) *Collector {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if state == nil {
		state = lifecycle.NewManager(logger, nil)
	}
	return &Collector{
		config:  config,
		queue:   q,
		dialer:  dialer,
		state:   state,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the connection state.
func (c *Collector) State() lifecycle.State {
	return c.state.State()
}

// Run executes the delivery loop until ctx is done or the queue is closed.
// It returns ctx.Err() or queue.ErrClosed.
func (c *Collector) Run(ctx context.Context) error {
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.session(ctx, &failures)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, queue.ErrClosed) {
			return err
		}

		delay := c.config.Backoff.Delay(failures)
		failures++

		c.logger.Warn("disconnected",
			log.Err(err),
			log.Int("failures", failures),
			log.Duration("delay", delay),
			log.Int("pending", c.queue.Len()),
		)
		if c.emitter != nil {
			c.emitter.OnSendError(err, failures, delay)
		}

		if err := backoff.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// session performs one connect, authenticate and pump cycle. It always
// returns a non-nil error and leaves the state Disconnected.
func (c *Collector) session(ctx context.Context, failures *int) error {
	if err := c.state.TransitionTo(lifecycle.StateConnecting, "connect"); err != nil {
		return err
	}

	cn, err := conn.Dial(ctx, c.dialer, c.config.Address, c.config.Conn, c.logger)
	if err != nil {
		c.state.Reset("dial failed")
		return err
	}

	// Cancellation forces deadlines on the socket so blocked I/O returns.
	stop := context.AfterFunc(ctx, cn.Abort)
	defer stop()

	if err := c.state.TransitionTo(lifecycle.StateAuthenticating, "connected"); err != nil {
		c.teardown(cn, "state")
		return err
	}

	if err := cn.Handshake(c.config.ClientID, c.config.Version, c.config.APIKey); err != nil {
		c.teardown(cn, "handshake failed")
		return fmt.Errorf("authenticate: %w", err)
	}

	if err := c.state.TransitionTo(lifecycle.StateStreaming, "authenticated"); err != nil {
		c.teardown(cn, "state")
		return err
	}
	*failures = 0

	c.logger.Info("connected",
		log.String("address", c.config.Address),
		log.Int("pending", c.queue.Len()),
	)

	err = c.pump(ctx, cn)
	reason := "connection lost"
	if ctx.Err() != nil {
		reason = "shutdown"
	}
	c.teardown(cn, reason)
	return err
}

// pump writes queued messages until the connection or ctx fails. The
// in-flight message survives a failed write.
func (c *Collector) pump(ctx context.Context, cn *conn.Conn) error {
	for {
		if !c.holding {
			msg, err := c.queue.Take(ctx)
			if err != nil {
				return err
			}
			c.held, c.holding = msg, true
		}

		if err := cn.Probe(); err != nil {
			return fmt.Errorf("probe: %w", err)
		}

		start := time.Now()
		if err := cn.Send(c.held); err != nil {
			return fmt.Errorf("send: %w", err)
		}

		msg := c.held
		c.held, c.holding = "", false
		c.queue.Done()

		if c.emitter != nil {
			c.emitter.OnSendSuccess(msg, time.Since(start))
		}
	}
}

// teardown closes cn and returns the state to Disconnected. Close errors
// are logged only.
func (c *Collector) teardown(cn *conn.Conn, reason string) {
	if s := c.state.State(); s == lifecycle.StateAuthenticating || s == lifecycle.StateStreaming {
		_ = c.state.TransitionTo(lifecycle.StateClosing, reason)
	}
	if err := cn.Close(); err != nil {
		c.logger.Debug("close connection", log.Err(err))
	}
	c.state.Reset(reason)
}
