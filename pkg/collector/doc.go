// Package collector runs the delivery worker: the single goroutine that
// owns the collector connection and drains the ingress queue over it.
//
// The worker loops through connect, authenticate and pump. Any failure
// tears the connection down and waits for the backoff delay derived from
// the number of consecutive failures before trying again. A successful
// authentication resets the failure count.
//
// A message taken from the queue stays in flight until its write
// succeeds. If the connection fails first, the same message is sent first
// on the next connection, ahead of anything newer. Delivery is at most
// once per successful write; the protocol has no per-message
// acknowledgement.
//
// Cancelling the context passed to [Collector.Run] interrupts every
// blocking point: the queue wait, socket I/O and the backoff sleep.
package collector
