package limit

import (
	"log/slog"
	"sync"
	"time"
)

// AIMD is an additive-increase/multiplicative-decrease estimator: the limit climbs by one on every sample that
// completes within the timeout threshold, and collapses by a fixed ratio the moment it sees a drop or a sample
// that ran too long. It's the cheapest estimator to reason about and a reasonable default when RTT isn't a
// reliable overload signal but explicit drops are.
type AIMD struct {
	changeBroadcaster

	minLimit         int
	maxLimit         int
	backoffRatio     float64
	timeoutThreshold int64
	logger           *slog.Logger

	mu    sync.Mutex
	limit int
}

// AIMDBuilder builds an AIMD estimator. Not concurrency safe; build once at startup.
type AIMDBuilder struct {
	minLimit         int
	maxLimit         int
	initialLimit     int
	backoffRatio     float64
	timeoutThreshold time.Duration
	logger           *slog.Logger
}

// NewAIMDBuilder returns an AIMDBuilder with the default backoff ratio of 0.9 and timeout threshold of 5 seconds.
func NewAIMDBuilder() *AIMDBuilder {
	return &AIMDBuilder{
		minLimit:         1,
		maxLimit:         1000,
		initialLimit:     20,
		backoffRatio:     0.9,
		timeoutThreshold: 5 * time.Second,
	}
}

// WithLimits configures the min, max, and initial limit.
func (b *AIMDBuilder) WithLimits(minLimit, maxLimit, initialLimit int) *AIMDBuilder {
	b.minLimit = minLimit
	b.maxLimit = maxLimit
	b.initialLimit = initialLimit
	return b
}

// WithBackoffRatio configures the multiplicative decrease ratio, applied as floor(limit*ratio). Must be in (0, 1).
func (b *AIMDBuilder) WithBackoffRatio(ratio float64) *AIMDBuilder {
	b.backoffRatio = ratio
	return b
}

// WithTimeoutThreshold configures the RTT above which a non-dropped sample is still treated as a backoff signal.
func (b *AIMDBuilder) WithTimeoutThreshold(threshold time.Duration) *AIMDBuilder {
	b.timeoutThreshold = threshold
	return b
}

// WithLogger configures debug logging of limit transitions.
func (b *AIMDBuilder) WithLogger(logger *slog.Logger) *AIMDBuilder {
	b.logger = logger
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new AIMD estimator.
func (b *AIMDBuilder) Build() (*AIMD, error) {
	if b.backoffRatio <= 0 || b.backoffRatio >= 1 {
		return nil, &ConfigError{Field: "backoffRatio", Message: "must be in (0, 1)"}
	}
	if b.minLimit < 1 {
		return nil, &ConfigError{Field: "minLimit", Message: "must be >= 1"}
	}
	if b.maxLimit < b.minLimit {
		return nil, &ConfigError{Field: "maxLimit", Message: "must be >= minLimit"}
	}
	initial := b.initialLimit
	if initial < b.minLimit {
		initial = b.minLimit
	}
	if initial > b.maxLimit {
		initial = b.maxLimit
	}
	return &AIMD{
		minLimit:         b.minLimit,
		maxLimit:         b.maxLimit,
		backoffRatio:     b.backoffRatio,
		timeoutThreshold: b.timeoutThreshold.Nanoseconds(),
		logger:           b.logger,
		limit:            initial,
	}, nil
}

func (a *AIMD) GetLimit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limit
}

func (a *AIMD) OnSample(startNanos, rttNanos int64, inflight int, didDrop bool) {
	a.mu.Lock()
	previous := a.limit
	if didDrop || (a.timeoutThreshold > 0 && rttNanos > a.timeoutThreshold) {
		newLimit := int(float64(a.limit) * a.backoffRatio)
		if newLimit < a.minLimit {
			newLimit = a.minLimit
		}
		a.limit = newLimit
	} else {
		newLimit := a.limit + 1
		if newLimit > a.maxLimit {
			newLimit = a.maxLimit
		}
		a.limit = newLimit
	}
	newLimit := a.limit
	a.mu.Unlock()

	if a.logger != nil && a.logger.Enabled(nil, slog.LevelDebug) && newLimit != previous {
		a.logger.Debug("aimd limit changed", "previous", previous, "limit", newLimit, "didDrop", didDrop)
	}
	a.fireIfChanged(previous, newLimit)
}

func (a *AIMD) NotifyOnChange(listener func(newLimit int)) {
	a.changeBroadcaster.notifyOnChange(listener)
}
