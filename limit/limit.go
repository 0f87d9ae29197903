// Package limit provides the estimators that decide how large a concurrency limit should be, independent of
// anything that actually enforces it. An estimator watches completed requests go by — their RTT, how many were
// inflight concurrently, whether they were dropped — and adjusts an integer limit the way a TCP sender adjusts its
// congestion window.
package limit

import (
	"sync"
)

// Limit is the common contract every estimator satisfies. OnSample is the single ingestion point: a limiter calls
// it once per terminal outcome (success or drop; ignored outcomes are never sampled). Implementations serialize
// their own OnSample calls internally where the underlying state isn't safe for concurrent mutation; callers may
// still call GetLimit and NotifyOnChange freely from any goroutine.
type Limit interface {
	// GetLimit returns the current integer limit.
	GetLimit() int

	// OnSample records a single completed request. startNanos and rttNanos are in nanoseconds; inflight is the
	// number of requests that were concurrently in flight when this one started; didDrop marks an outcome
	// indicative of overload (as opposed to a successful completion).
	OnSample(startNanos, rttNanos int64, inflight int, didDrop bool)

	// NotifyOnChange registers a listener invoked with the new limit whenever OnSample or SetLimit (where
	// applicable) changes the integer limit. Registration order is not guaranteed to be preserved in delivery.
	NotifyOnChange(listener func(newLimit int))
}

// changeBroadcaster implements the copy-on-write change-notification pattern shared by every estimator
// in this package: change frequency is low (at most once per sample or window rotation) while reads of the
// listener set are comparatively frequent, so a mutex-guarded copy-on-write slice outperforms a plain
// mutex-guarded list under read-heavy/write-light contention.
type changeBroadcaster struct {
	mu        sync.Mutex
	listeners []func(newLimit int)
}

func (c *changeBroadcaster) notifyOnChange(listener func(newLimit int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]func(newLimit int), len(c.listeners)+1)
	copy(next, c.listeners)
	next[len(c.listeners)] = listener
	c.listeners = next
}

// fireIfChanged invokes every registered listener with newLimit when it differs from previous.
func (c *changeBroadcaster) fireIfChanged(previous, newLimit int) {
	if previous == newLimit {
		return
	}
	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()
	for _, l := range listeners {
		l(newLimit)
	}
}
