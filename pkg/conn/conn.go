package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/instrumental/instrumental-go/pkg/log"
	"github.com/instrumental/instrumental-go/pkg/protocol"
)

var (
	// ErrPeerClosed is returned by Probe when the collector closed or reset
	// the connection.
	ErrPeerClosed = errors.New("conn: peer closed connection")

	// ErrAborted is returned by operations after Abort.
	ErrAborted = errors.New("conn: aborted")
)

// Default timeouts.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultProbeTimeout     = time.Duration(0) // poll without waiting
	DefaultDrainTimeout     = 250 * time.Millisecond

	// fallbackProbeTimeout bounds the read-deadline probe when ProbeTimeout
	// is zero; a zero read deadline would block.
	fallbackProbeTimeout = time.Millisecond
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options bounds every blocking socket operation.
type Options struct {
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ProbeTimeout     time.Duration // zero checks liveness without waiting
	DrainTimeout     time.Duration
}

// DefaultOptions returns the default timeouts.
func DefaultOptions() Options {
	return Options{
		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		ProbeTimeout:     DefaultProbeTimeout,
		DrainTimeout:     DefaultDrainTimeout,
	}
}

// Conn is one TCP session with the collector.
type Conn struct {
	nc      net.Conn
	opts    Options
	logger  log.Logger
	scratch []byte

	mu      sync.Mutex
	aborted bool
}

// Dial connects to addr. The attempt is bounded by opts.DialTimeout and ctx.
func Dial(ctx context.Context, d Dialer, addr string, opts Options, logger log.Logger) (*Conn, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if d == nil {
		d = &net.Dialer{}
	}
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(nc, opts, logger), nil
}

// New wraps an established connection.
func New(nc net.Conn, opts Options, logger log.Logger) *Conn {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Conn{
		nc:      nc,
		opts:    opts,
		logger:  logger,
		scratch: make([]byte, 1024),
	}
}

// RemoteAddr returns the collector address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Handshake sends the hello and authenticate lines in one write and waits
// for both acknowledgements. A rejection wraps protocol.ErrRejected.
func (c *Conn) Handshake(clientID, version, apiKey string) error {
	if err := c.setDeadline(c.opts.HandshakeTimeout); err != nil {
		return err
	}
	defer c.clearDeadline()

	if _, err := c.nc.Write(protocol.HandshakeBytes(clientID, version, apiKey)); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	if err := protocol.ReadAcks(c.nc, protocol.HandshakeReplies); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// Probe reports whether the connection is still usable. It returns
// ErrPeerClosed if the peer closed or reset it, another error if the check
// itself failed, and nil otherwise. Pushed bytes are read and discarded.
func (c *Conn) Probe() error {
	if c.isAborted() {
		return ErrAborted
	}
	for {
		res, supported, err := pollFD(c.nc, c.opts.ProbeTimeout)
		if !supported {
			return c.probeByDeadline()
		}
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		if !res.readable {
			return nil
		}
		if res.available == 0 {
			return ErrPeerClosed
		}
		if err := c.discard(res.available); err != nil {
			return err
		}
	}
}

// probeByDeadline answers the same question with a short read deadline for
// connections that do not expose a file descriptor.
func (c *Conn) probeByDeadline() error {
	timeout := c.opts.ProbeTimeout
	if timeout <= 0 {
		timeout = fallbackProbeTimeout
	}
	for {
		if err := c.setReadDeadline(timeout); err != nil {
			return err
		}
		n, err := c.nc.Read(c.scratch)
		c.clearDeadline()

		switch {
		case n > 0 && err == nil:
			c.logger.Debug("discarded unexpected bytes from collector", log.Int("bytes", n))
			continue
		case err == nil:
			return nil
		case isTimeout(err):
			return nil
		case errors.Is(err, io.EOF):
			return ErrPeerClosed
		default:
			return fmt.Errorf("probe read: %w", err)
		}
	}
}

func (c *Conn) discard(n int) error {
	if err := c.setReadDeadline(c.opts.DrainTimeout); err != nil {
		return err
	}
	defer c.clearDeadline()

	read, err := io.CopyN(io.Discard, c.nc, int64(n))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrPeerClosed
		}
		return fmt.Errorf("discard pushed bytes: %w", err)
	}
	c.logger.Debug("discarded unexpected bytes from collector", log.Int("bytes", int(read)))
	return nil
}

// Send writes msg followed by a newline.
func (c *Conn) Send(msg string) error {
	if err := c.setWriteDeadline(c.opts.WriteTimeout); err != nil {
		return err
	}
	defer c.clearDeadline()

	if _, err := c.nc.Write(protocol.Frame(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close shuts down the write side, drains whatever the peer still sends
// for at most DrainTimeout, and closes the socket. The socket is closed
// even when an earlier step fails; the returned error is informational.
func (c *Conn) Close() error {
	var errs []error

	if cw, ok := c.nc.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close write: %w", err))
		}
	}

	if c.opts.DrainTimeout > 0 {
		// Bypass the abort guard: draining is bounded and part of teardown.
		_ = c.nc.SetReadDeadline(time.Now().Add(c.opts.DrainTimeout))
		if n, err := io.Copy(io.Discard, c.nc); err != nil && !isTimeout(err) && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("drain: %w", err))
		} else if n > 0 {
			c.logger.Debug("drained bytes on close", log.Int("bytes", int(n)))
		}
	}

	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

// Abort unblocks any pending read or write and makes later operations fail
// with ErrAborted. It is safe to call from any goroutine.
func (c *Conn) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
	_ = c.nc.SetDeadline(time.Now())
}

func (c *Conn) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Conn) setDeadline(d time.Duration) error {
	return c.guard(func(t time.Time) error { return c.nc.SetDeadline(t) }, d)
}

func (c *Conn) setReadDeadline(d time.Duration) error {
	return c.guard(func(t time.Time) error { return c.nc.SetReadDeadline(t) }, d)
}

func (c *Conn) setWriteDeadline(d time.Duration) error {
	return c.guard(func(t time.Time) error { return c.nc.SetWriteDeadline(t) }, d)
}

func (c *Conn) clearDeadline() {
	_ = c.guard(func(t time.Time) error { return c.nc.SetDeadline(t) }, 0)
}

// guard applies a deadline d from now (zero clears it) unless the
// connection was aborted, so an abort can never be overwritten.
func (c *Conn) guard(set func(time.Time) error, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return ErrAborted
	}
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	return set(t)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
