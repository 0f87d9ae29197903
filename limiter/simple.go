package limiter

import (
	"context"
	"sync/atomic"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/internal/util"
	"github.com/climiter/climiter/limit"
)

// Simple is an unpartitioned Limiter admitting via a CAS loop against the estimator's current limit: every
// Acquire re-reads the live limit and only commits the increment if inflight is still below it, so a limit
// decrease (e.g. after a drop) takes effect on the very next Acquire rather than waiting for outstanding permits
// to drain.
type Simple struct {
	name      string
	estimator limit.Limit
	clock     util.Clock
	bypass    BypassPredicate
	reporter  *metricReporter

	inflight atomic.Int64
}

// SimpleBuilder builds a Simple limiter. Not concurrency safe; build once at startup.
type SimpleBuilder struct {
	commonConfig
}

// NewSimpleBuilder returns a SimpleBuilder wrapping estimator, which supplies the adaptive (or fixed) integer
// limit this Limiter enforces.
func NewSimpleBuilder(estimator limit.Limit) *SimpleBuilder {
	c := defaultCommonConfig()
	c.estimator = estimator
	return &SimpleBuilder{commonConfig: c}
}

// WithName configures the limiter's name, used as the "id" tag on every reported metric. Defaults to a
// process-wide synthesized name if unset.
func (b *SimpleBuilder) WithName(name string) *SimpleBuilder {
	b.name = name
	return b
}

// WithClock overrides the clock used to time samples, for deterministic tests.
func (b *SimpleBuilder) WithClock(clock util.Clock) *SimpleBuilder {
	b.clock = clock
	return b
}

// WithMetricSink configures where this limiter reports its gauges and counters. Defaults to metrics.Noop.
func (b *SimpleBuilder) WithMetricSink(sink climiter.MetricSink) *SimpleBuilder {
	b.metrics = sink
	return b
}

// WithBypass configures a predicate that, when it matches a request's context, admits the request without
// counting it against inflight or sampling the estimator.
func (b *SimpleBuilder) WithBypass(predicate BypassPredicate) *SimpleBuilder {
	b.bypass = predicate
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new Simple limiter.
func (b *SimpleBuilder) Build() (*Simple, error) {
	if b.estimator == nil {
		return nil, &ConfigError{Field: "estimator", Message: "must not be nil"}
	}
	name := b.name
	if name == "" {
		name = nextDefaultName("limiter")
	}
	s := &Simple{
		name:      name,
		estimator: b.estimator,
		clock:     b.clock,
		bypass:    b.bypass,
	}
	s.reporter = newMetricReporter(b.metrics, name, func() float64 { return float64(s.Limit()) }, func() float64 { return float64(s.Inflight()) })
	return s, nil
}

func (s *Simple) Limit() int {
	return s.estimator.GetLimit()
}

func (s *Simple) Inflight() int {
	return int(s.inflight.Load())
}

func (s *Simple) Acquire(ctx context.Context) (Listener, bool) {
	if s.bypass != nil && s.bypass(ctx) {
		s.reporter.bypassed.Inc()
		return bypassListener{}, true
	}

	var admitted int64
	for {
		current := s.inflight.Load()
		limit := int64(s.estimator.GetLimit())
		if current >= limit {
			s.reporter.rejected.Inc()
			return nil, false
		}
		admitted = current + 1
		if s.inflight.CompareAndSwap(current, admitted) {
			break
		}
	}

	listener := &stdListener{
		estimator:  s.estimator,
		startNanos: s.clock.CurrentUnixNano(),
		nowNanos:   s.clock.CurrentUnixNano,
		inflight:   int(admitted),
		release: func() {
			s.inflight.Add(-1)
		},
		onTerminate: func(outcome climiterOutcome) {
			s.reporter.record(outcome)
		},
	}
	return listener, true
}
