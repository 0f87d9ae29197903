// Package limiter provides the admission-gate side of concurrency limiting: types that decide whether to let a
// request through right now, independent of how the numeric limit itself is computed (see package limit). A
// Limiter wraps a limit.Limit, tracks how many requests are currently inflight, and feeds completed requests back
// into the estimator via the Listener each Acquire returns.
package limiter

import (
	"context"
	"errors"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/internal/util"
	"github.com/climiter/climiter/limit"
	"github.com/climiter/climiter/metrics"
)

// ErrRejected is returned conceptually by Acquire's boolean return; it's exported for callers that want a
// standard error to wrap when translating a rejected Acquire into their own error type (e.g. an HTTP or gRPC
// status).
var ErrRejected = errors.New("climiter: acquire rejected, limiter is at capacity")

// ConfigError is returned by a Builder's Build method when the builder's configuration is invalid.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "climiter/limiter: invalid " + e.Field + ": " + e.Message
}

// Limiter is the public admission gate. Acquire either returns a live Listener the caller must eventually
// terminate with exactly one of OnSuccess, OnDropped, or OnIgnore, or returns ok=false to indicate the request
// should be rejected outright.
type Limiter interface {
	// Acquire attempts to admit one request. ctx is opaque to the core and consulted only by a configured bypass
	// predicate or partition resolver.
	Acquire(ctx context.Context) (Listener, bool)

	// Limit returns the limiter's current integer limit.
	Limit() int

	// Inflight returns the number of requests currently admitted and not yet terminated.
	Inflight() int
}

// Listener is a single-use capability returned by Acquire. Exactly one terminal method must be called; every
// implementation treats repeated terminal calls, in any combination, as a no-op after the first.
type Listener interface {
	// OnSuccess reports the request completed normally. Feeds a non-dropped sample to the estimator.
	OnSuccess()

	// OnDropped reports the request failed in a way indicative of overload (timeout, unavailable, etc). Feeds a
	// dropped sample to the estimator.
	OnDropped()

	// OnIgnore reports the request completed but its timing isn't meaningful for the estimator (e.g. it failed
	// validation before any real work happened). Releases the inflight slot without sampling.
	OnIgnore()
}

// BypassPredicate decides whether a request should skip the limiter entirely: bypassed requests are always
// admitted, never counted against inflight, and never sampled.
type BypassPredicate func(ctx context.Context) bool

// commonConfig holds the fields shared by every limiter variant's builder.
type commonConfig struct {
	name      string
	clock     util.Clock
	metrics   climiter.MetricSink
	bypass    BypassPredicate
	estimator limit.Limit
}

func defaultCommonConfig() commonConfig {
	return commonConfig{
		clock:   util.WallClock,
		metrics: metrics.Noop,
	}
}

// bypassListener is returned when a bypass predicate matches. Every terminal method is a no-op; it never touches
// inflight or the estimator, satisfying the "bypass neutrality" requirement that a bypassed run produces no
// samples and no limit change.
type bypassListener struct{}

func (bypassListener) OnSuccess() {}
func (bypassListener) OnDropped() {}
func (bypassListener) OnIgnore()  {}
