// Package notify implements the broadcast engine that turns applied units of work
// into subscriber notifications.
//
// Pipeline:
//
//	ledger ──OnApplied──> intake queue ──> round worker ──┬─> Dispatcher (objects)
//	                                                      └─> Aggregator (markets)
//
// OnApplied only enqueues and returns. A single worker goroutine drains the queue and
// runs one broadcast round at a time; units that arrive while a round is running are
// coalesced into the next round. Inside a round, deliveries run concurrently and the
// round waits for all of them before the next one starts.
//
// A sink that returns an error (or panics) is removed from the registry, unless the
// key has been re-subscribed to a different sink since the round took its snapshot.
package notify
