// Package lifecycle tracks the state of the collector connection.
//
// Exactly one connection exists at a time and it moves through:
//
//	Disconnected -> Connecting -> Authenticating -> Streaming -> Closing -> Disconnected
//
// with these shortcuts back to Disconnected:
//   - Connecting -> Disconnected (dial failed)
//   - Authenticating -> Closing or Disconnected (handshake failed)
//   - Streaming -> Disconnected (socket already gone)
//
// The [Manager] validates each transition, logs it, and notifies an optional
// [EventEmitter]. Only the delivery worker calls TransitionTo; any goroutine
// may read State.
//
// The Manager also counts the worker goroutine so that shutdown can wait for
// it with a timeout:
//
//	manager.AddWorker()
//	go func() {
//	    defer manager.WorkerDone()
//	    ...
//	}()
//	if err := manager.WaitWithTimeout(lifecycle.ShutdownTimeout); err != nil {
//	    return err
//	}
package lifecycle
