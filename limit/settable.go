package limit

import "sync/atomic"

// Settable is a Limit controlled entirely from outside the sampling path. OnSample is a no-op; SetLimit is the
// only way its value moves. Useful for operator-driven overrides, feature-flagged caps, or tests that want a
// limiter with a known, externally-controlled limit.
type Settable struct {
	changeBroadcaster
	limit atomic.Int64
}

// NewSettable returns a Settable limit initialized to n.
func NewSettable(n int) *Settable {
	s := &Settable{}
	s.limit.Store(int64(n))
	return s
}

func (s *Settable) GetLimit() int {
	return int(s.limit.Load())
}

// SetLimit updates the limit to n and notifies change listeners if it differs from the previous value.
func (s *Settable) SetLimit(n int) {
	previous := s.limit.Swap(int64(n))
	s.fireIfChanged(int(previous), n)
}

func (s *Settable) OnSample(startNanos, rttNanos int64, inflight int, didDrop bool) {}

func (s *Settable) NotifyOnChange(listener func(newLimit int)) {
	s.changeBroadcaster.notifyOnChange(listener)
}
