/*
Package climiter is an adaptive concurrency-limiting library. It protects a service, or an outbound client, from
overload by bounding the number of in-flight operations it admits at any instant, and continuously re-estimates that
bound from observed round-trip times and drop signals.

The library treats a concurrency limit the way TCP treats a congestion window: grow while latency stays near its
observed minimum, shrink when latency inflates or operations are dropped. Three packages hold the core:

  - [github.com/climiter/climiter/limit] computes a new integer limit from a stream of samples (Vegas, Gradient2,
    AIMD, or a fixed/settable value).
  - [github.com/climiter/climiter/limiter] is the admission gate built on top of a Limit: an atomic inflight
    counter, optional named partitions, an optional bypass predicate, and Listeners that feed outcomes back to the
    Limit.
  - [github.com/climiter/climiter/bulkhead] is a non-blocking, buffered frontend for asynchronous work that
    dispatches under a Limiter's admitted permits.

This root package holds the types every one of those packages consumes: a Clock abstraction, a metrics façade, and
the sentinel Outcome values used to classify how an execution ended.
*/
package climiter

import "github.com/climiter/climiter/internal/util"

// Clock provides the current time. The default, Clock's zero value's counterpart WallClock, is backed by the
// system clock; tests substitute a fake to make sampling windows and blocking timeouts deterministic.
type Clock = util.Clock

// WallClock is the default Clock, backed by the system clock.
var WallClock = util.WallClock

// Outcome classifies how a permitted execution ended, as reported to a Listener.
type Outcome int

const (
	// OutcomeSuccess indicates the execution completed normally; its RTT is sampled as a non-drop.
	OutcomeSuccess Outcome = iota
	// OutcomeDropped indicates the execution failed in a way indicative of overload (timeout, unavailable,
	// backlog overflow); its RTT is sampled as a drop.
	OutcomeDropped
	// OutcomeIgnored indicates the execution's RTT is not meaningful to the estimator (e.g. a business error
	// raised before any work was done). Inflight is decremented but no sample is recorded.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDropped:
		return "dropped"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}
