// Package queue provides the bounded ingress buffer between producers and
// the delivery worker.
//
// Any number of goroutines may call [Queue.Offer] concurrently; exactly one
// consumer calls [Queue.Take] and [Queue.Done]. Offer never blocks: when the
// queue is at capacity the newest message is dropped and Offer reports false.
//
// A message returned by Take stays counted by [Queue.Len] until the consumer
// calls Done, so Len reports total outstanding work including the message
// currently being written to the network.
//
// Overflow is reported edge-triggered: one warning when the queue first
// becomes full, one info line when the next offer succeeds again.
package queue
