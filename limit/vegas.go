package limit

import (
	"log/slog"
	"sync"

	"github.com/climiter/climiter/internal/util"
)

// Vegas is a delay-based estimator modeled on TCP Vegas: it tracks the best (lowest) RTT ever observed as a proxy
// for an uncongested round trip, derives a queue-size estimate from how far the current sample's RTT has drifted
// from that baseline, and nudges the limit up when the estimated queue is shallow or down when it's deep.
//
// Vegas reacts well to services whose RTT is a meaningful congestion signal; it reacts poorly if RTT is dominated
// by factors unrelated to concurrency (e.g. a slow downstream with a fixed latency floor well above the limiter's
// own queueing delay).
type Vegas struct {
	changeBroadcaster

	alphaFunc      func(int) int
	betaFunc       func(int) int
	logThresholdFn func(int) int
	smoothing      float64
	maxConcurrency int
	logger         *slog.Logger

	mu          sync.Mutex
	limit       int
	minRttNanos int64
	hasMinRtt   bool
}

// VegasBuilder builds a Vegas estimator. Not concurrency safe; build once at startup.
type VegasBuilder struct {
	alpha          float64
	beta           float64
	logThreshold   float64
	smoothing      float64
	initialLimit   int
	maxConcurrency int
	logger         *slog.Logger
}

// NewVegasBuilder returns a VegasBuilder with the defaults from the estimator's design: alpha coefficient 3,
// beta coefficient 6, log threshold coefficient 1, smoothing 1.0 (no EWMA damping), initial limit 20, max
// concurrency 20.
func NewVegasBuilder() *VegasBuilder {
	return &VegasBuilder{
		alpha:          3,
		beta:           6,
		logThreshold:   1,
		smoothing:      1.0,
		initialLimit:   20,
		maxConcurrency: 20,
	}
}

// WithAlphaBeta configures the alpha and beta coefficients used as alpha(L) = alphaCoeff*log10(L) and
// beta(L) = betaCoeff*log10(L), the low/high queue-size thresholds that trigger an increase or decrease.
func (b *VegasBuilder) WithAlphaBeta(alphaCoeff, betaCoeff float64) *VegasBuilder {
	b.alpha = alphaCoeff
	b.beta = betaCoeff
	return b
}

// WithLogThreshold configures the coefficient of the log10-based step size applied on both increase and decrease.
func (b *VegasBuilder) WithLogThreshold(coeff float64) *VegasBuilder {
	b.logThreshold = coeff
	return b
}

// WithSmoothing configures an optional EWMA damping factor applied to each computed limit change, in (0, 1].
// 1.0 (the default) disables damping.
func (b *VegasBuilder) WithSmoothing(smoothing float64) *VegasBuilder {
	b.smoothing = smoothing
	return b
}

// WithInitialLimit configures the starting limit, before any samples arrive.
func (b *VegasBuilder) WithInitialLimit(limit int) *VegasBuilder {
	b.initialLimit = limit
	return b
}

// WithMaxConcurrency configures the ceiling the limit can never exceed.
func (b *VegasBuilder) WithMaxConcurrency(max int) *VegasBuilder {
	b.maxConcurrency = max
	return b
}

// WithLogger configures debug logging of limit transitions.
func (b *VegasBuilder) WithLogger(logger *slog.Logger) *VegasBuilder {
	b.logger = logger
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new Vegas estimator.
func (b *VegasBuilder) Build() (*Vegas, error) {
	if b.smoothing <= 0 || b.smoothing > 1 {
		return nil, &ConfigError{Field: "smoothing", Message: "must be in (0, 1]"}
	}
	if b.maxConcurrency < 1 {
		return nil, &ConfigError{Field: "maxConcurrency", Message: "must be >= 1"}
	}
	initial := b.initialLimit
	if initial < 1 {
		initial = 1
	}
	if initial > b.maxConcurrency {
		initial = b.maxConcurrency
	}
	return &Vegas{
		alphaFunc:      util.Log10RootFunction(b.alpha),
		betaFunc:       util.Log10RootFunction(b.beta),
		logThresholdFn: util.Log10RootFunction(b.logThreshold),
		smoothing:      b.smoothing,
		maxConcurrency: b.maxConcurrency,
		logger:         b.logger,
		limit:          initial,
	}, nil
}

func (v *Vegas) GetLimit() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.limit
}

func (v *Vegas) OnSample(startNanos, rttNanos int64, inflight int, didDrop bool) {
	v.mu.Lock()

	if !v.hasMinRtt {
		// Bootstrap: the first sample just establishes the baseline RTT. There's no prior baseline to compare
		// against yet, so nothing about the limit can be concluded from a single data point.
		v.minRttNanos = rttNanos
		v.hasMinRtt = true
		limit := v.limit
		v.mu.Unlock()
		v.fireIfChanged(limit, limit)
		return
	}

	if rttNanos > 0 && rttNanos < v.minRttNanos {
		v.minRttNanos = rttNanos
	}

	previous := v.limit
	newLimit := previous

	if didDrop {
		newLimit = previous / 2
	} else if rttNanos > 0 {
		queueSize := ceilDiv(previous*(rttNanos-v.minRttNanos), rttNanos)
		alpha := v.alphaFunc(previous)
		beta := v.betaFunc(previous)
		switch {
		case queueSize <= alpha:
			newLimit = previous + v.logThresholdFn(previous)
		case queueSize >= beta:
			newLimit = previous - v.logThresholdFn(previous)
		}
	}

	newLimit = util.ClampInt(newLimit, 1, v.maxConcurrency)
	if v.smoothing < 1.0 {
		newLimit = int(util.Smooth(float64(previous), float64(newLimit), v.smoothing))
	}

	v.limit = newLimit
	v.mu.Unlock()

	if v.logger != nil && v.logger.Enabled(nil, slog.LevelDebug) && newLimit != previous {
		v.logger.Debug("vegas limit changed", "previous", previous, "limit", newLimit, "didDrop", didDrop)
	}
	v.fireIfChanged(previous, newLimit)
}

func (v *Vegas) NotifyOnChange(listener func(newLimit int)) {
	v.changeBroadcaster.notifyOnChange(listener)
}

// ceilDiv computes ceil(numerator / denominator) for integers without floating point, matching
// ⌈L·(1 − minRtt/s)⌉ = ⌈L·(s − minRtt)/s⌉.
func ceilDiv(numerator, denominator int64) int {
	if denominator == 0 {
		return 0
	}
	if numerator <= 0 {
		return 0
	}
	return int((numerator + denominator - 1) / denominator)
}
