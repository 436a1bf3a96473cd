package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/instrumental/instrumental-go/pkg/log"
)

// DefaultCapacity is the number of messages buffered before offers are dropped.
const DefaultCapacity = 5000

// ErrClosed is returned by Take after Close.
var ErrClosed = errors.New("queue: closed")

// Hooks are notified on overflow transitions and drops. They are called on
// the producer goroutine that caused the transition and must not block.
type Hooks struct {
	OnFull      func(pending int)
	OnRecovered func(pending int)
	OnDrop      func(msg string)
}

// Queue is a bounded multi-producer, single-consumer FIFO of message lines.
type Queue struct {
	items    chan string
	capacity int
	logger   log.Logger
	hooks    Hooks

	// pending counts buffered messages plus the one in flight. It is
	// reserved before a send on items, so len(items) <= pending <= capacity
	// and the channel send in Offer can never block.
	pending  atomic.Int64
	inFlight atomic.Bool
	full     atomic.Bool
	dropped  atomic.Uint64
	accepted atomic.Uint64

	closed chan struct{}
	once   sync.Once
}

// New creates a queue. A non-positive capacity selects DefaultCapacity.
// A nil logger discards output.
func New(capacity int, logger log.Logger, hooks Hooks) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Queue{
		items:    make(chan string, capacity),
		capacity: capacity,
		logger:   logger,
		hooks:    hooks,
		closed:   make(chan struct{}),
	}
}

// Offer adds msg without blocking. It returns false if the queue is full or
// closed, in which case msg is dropped.
func (q *Queue) Offer(msg string) bool {
	select {
	case <-q.closed:
		// Not an overflow: count the loss without touching the full edge.
		q.dropped.Add(1)
		return false
	default:
	}

	for {
		n := q.pending.Load()
		if n >= int64(q.capacity) {
			q.drop(msg)
			return false
		}
		if q.pending.CompareAndSwap(n, n+1) {
			break
		}
	}

	q.items <- msg
	q.accepted.Add(1)

	if q.full.CompareAndSwap(true, false) {
		pending := q.Len()
		q.logger.Info("queue no longer full, processing messages", log.Int("pending", pending))
		if q.hooks.OnRecovered != nil {
			q.hooks.OnRecovered(pending)
		}
	}
	return true
}

func (q *Queue) drop(msg string) {
	q.dropped.Add(1)
	if q.hooks.OnDrop != nil {
		q.hooks.OnDrop(msg)
	}
	if q.full.CompareAndSwap(false, true) {
		pending := q.Len()
		q.logger.Warn("queue full, dropping messages until there is room",
			log.Int("pending", pending),
			log.Int("capacity", q.capacity),
		)
		if q.hooks.OnFull != nil {
			q.hooks.OnFull(pending)
		}
	}
}

// Take blocks until a message is available, ctx is done, or the queue is
// closed. The returned message remains counted by Len until Done is called.
// Take must only be called by the single consumer, and not again before Done
// while a message is in flight.
func (q *Queue) Take(ctx context.Context) (string, error) {
	select {
	case msg := <-q.items:
		q.inFlight.Store(true)
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.closed:
		return "", ErrClosed
	}
}

// Done releases the in-flight message after it was written successfully.
// Calling Done with nothing in flight is a no-op.
func (q *Queue) Done() {
	if q.inFlight.CompareAndSwap(true, false) {
		q.pending.Add(-1)
	}
}

// InFlight reports whether a taken message has not been released yet.
func (q *Queue) InFlight() bool {
	return q.inFlight.Load()
}

// Len returns the number of buffered messages plus the in-flight message.
func (q *Queue) Len() int {
	return int(q.pending.Load())
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Dropped returns the total number of rejected offers.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Accepted returns the total number of successful offers.
func (q *Queue) Accepted() uint64 {
	return q.accepted.Load()
}

// Full reports whether the queue is currently in the overflow state.
func (q *Queue) Full() bool {
	return q.full.Load()
}

// Discard removes every buffered message and releases the in-flight one.
// It returns how many messages were thrown away.
func (q *Queue) Discard() int {
	n := 0
	for {
		select {
		case <-q.items:
			q.pending.Add(-1)
			n++
		default:
			if q.inFlight.CompareAndSwap(true, false) {
				q.pending.Add(-1)
				n++
			}
			return n
		}
	}
}

// Close rejects further offers and wakes a blocked Take. It is safe to call
// more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}
