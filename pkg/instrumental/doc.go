// Package instrumental records application metrics and ships them to an
// Instrumental collector without blocking the caller.
//
// Recording calls validate and format a protocol line and offer it to a
// bounded in-memory queue. A single background worker owns the TCP
// connection, authenticates, streams queued lines, and reconnects with a
// capped backoff when the connection fails. When the queue is full new
// messages are dropped; recording never waits for the network.
//
// Basic usage:
//
//	agent, err := instrumental.New(instrumental.Config{APIKey: key})
//	if err != nil {
//	    return err
//	}
//	defer agent.Stop()
//
//	agent.Increment("signups")
//	agent.Gauge("queue.depth", 42)
//	agent.TimeMs("render.page", func() { render() })
//	agent.Notice("deployed v1.2.3", 0)
//
// Messages still buffered when Stop is called are discarded. Call Flush
// first to wait for the queue to drain.
//
// # Events
//
// Register an [EventHandler] with [WithEventHandler] to observe connection
// state changes, sends, failures and drops. Embed [BaseEventHandler] to
// implement only the callbacks you need. Handlers run synchronously on the
// goroutine that produced the event and must not block.
package instrumental
