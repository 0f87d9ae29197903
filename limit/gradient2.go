package limit

import (
	"log/slog"
	"sync"

	"github.com/climiter/climiter/internal/util"
)

// Gradient2 tracks two exponential averages of sample RTT, a short one that reacts quickly and a long one that
// moves slowly, and derives the limit from their ratio (the "gradient"). It's less sensitive than Vegas to a
// single noisy sample and better suited to services whose baseline RTT drifts slowly over time, since the long
// window gets nudged upward rather than left to decay toward a stale minimum when the short window is sustainedly
// higher.
type Gradient2 struct {
	changeBroadcaster

	queueSizeFunc      func(int) int
	resetBiasThreshold int
	minLimit           int
	maxLimit           int
	logger             *slog.Logger

	mu               sync.Mutex
	limit            int
	shortRTT         *ExponentialAverage
	longRTT          *ExponentialAverage
	consecutiveAbove int
}

// Gradient2Builder builds a Gradient2 estimator. Not concurrency safe; build once at startup.
type Gradient2Builder struct {
	shortWindow        int
	longWindow         int
	warmupSamples      int
	resetBiasThreshold int
	useSquareRoot      bool
	logLogCoeff        float64
	minLimit           int
	maxLimit           int
	initialLimit       int
	logger             *slog.Logger
}

// NewGradient2Builder returns a Gradient2Builder with a short window of 10 samples, a long window of 100 (10x the
// short window, per the estimator's design), a reset-bias threshold of 4 consecutive samples, a square-root queue
// tolerance, min/max limits of 1/200, and an initial limit of 20.
func NewGradient2Builder() *Gradient2Builder {
	return &Gradient2Builder{
		shortWindow:        10,
		longWindow:         100,
		warmupSamples:      10,
		resetBiasThreshold: 4,
		useSquareRoot:      true,
		minLimit:           1,
		maxLimit:           200,
		initialLimit:       20,
	}
}

// WithWindows configures the short and long EWMA window sizes, in samples. longWindow should typically be about
// 10x shortWindow.
func (b *Gradient2Builder) WithWindows(shortWindow, longWindow int) *Gradient2Builder {
	b.shortWindow = shortWindow
	b.longWindow = longWindow
	return b
}

// WithQueueSizeLog10 switches the queue tolerance term from the default square root of the limit to
// coeff*log10(limit).
func (b *Gradient2Builder) WithQueueSizeLog10(coeff float64) *Gradient2Builder {
	b.useSquareRoot = false
	b.logLogCoeff = coeff
	return b
}

// WithResetBiasThreshold configures how many consecutive samples with the short average above the long average
// trigger an upward nudge of the long average, to avoid permanently starving a service whose baseline RTT has
// genuinely increased.
func (b *Gradient2Builder) WithResetBiasThreshold(samples int) *Gradient2Builder {
	b.resetBiasThreshold = samples
	return b
}

// WithLimits configures the min, max, and initial limit.
func (b *Gradient2Builder) WithLimits(minLimit, maxLimit, initialLimit int) *Gradient2Builder {
	b.minLimit = minLimit
	b.maxLimit = maxLimit
	b.initialLimit = initialLimit
	return b
}

// WithLogger configures debug logging of limit transitions.
func (b *Gradient2Builder) WithLogger(logger *slog.Logger) *Gradient2Builder {
	b.logger = logger
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new Gradient2 estimator.
func (b *Gradient2Builder) Build() (*Gradient2, error) {
	if b.shortWindow < 1 || b.longWindow < 1 {
		return nil, &ConfigError{Field: "window", Message: "short and long windows must be >= 1"}
	}
	if b.minLimit < 1 {
		return nil, &ConfigError{Field: "minLimit", Message: "must be >= 1"}
	}
	if b.maxLimit < b.minLimit {
		return nil, &ConfigError{Field: "maxLimit", Message: "must be >= minLimit"}
	}
	initial := util.ClampInt(b.initialLimit, b.minLimit, b.maxLimit)

	queueSizeFunc := util.SquareRoot
	if !b.useSquareRoot {
		queueSizeFunc = util.Log10RootFunction(b.logLogCoeff)
	}

	return &Gradient2{
		queueSizeFunc:      queueSizeFunc,
		resetBiasThreshold: b.resetBiasThreshold,
		minLimit:           b.minLimit,
		maxLimit:           b.maxLimit,
		logger:             b.logger,
		limit:              initial,
		shortRTT:           NewExponentialAverage(b.shortWindow, b.warmupSamples, Min),
		longRTT:            NewExponentialAverage(b.longWindow, b.warmupSamples, Min),
	}, nil
}

func (g *Gradient2) GetLimit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

func (g *Gradient2) OnSample(startNanos, rttNanos int64, inflight int, didDrop bool) {
	g.mu.Lock()
	previous := g.limit

	if didDrop {
		newLimit := previous / 2
		if newLimit < g.minLimit {
			newLimit = g.minLimit
		}
		g.limit = newLimit
		newLimit = g.limit
		g.mu.Unlock()
		g.logAndFire(previous, newLimit, didDrop)
		return
	}

	shortAvg := g.shortRTT.Add(float64(rttNanos))
	longAvg := g.longRTT.Add(float64(rttNanos))

	if shortAvg > longAvg {
		g.consecutiveAbove++
		if g.consecutiveAbove >= g.resetBiasThreshold {
			g.longRTT.Update(func(v float64) float64 {
				return util.Smooth(v, shortAvg, 0.5)
			})
			longAvg = g.longRTT.Get()
			g.consecutiveAbove = 0
		}
	} else {
		g.consecutiveAbove = 0
	}

	gradient := 1.0
	if shortAvg > 0 {
		gradient = util.ClampFloat(longAvg/shortAvg, 0.5, 1.0)
	}

	queueSize := g.queueSizeFunc(previous)
	newLimit := int(float64(previous)*gradient) + queueSize
	newLimit = util.ClampInt(newLimit, g.minLimit, g.maxLimit)

	g.limit = newLimit
	g.mu.Unlock()
	g.logAndFire(previous, newLimit, didDrop)
}

func (g *Gradient2) logAndFire(previous, newLimit int, didDrop bool) {
	if g.logger != nil && g.logger.Enabled(nil, slog.LevelDebug) && newLimit != previous {
		g.logger.Debug("gradient2 limit changed", "previous", previous, "limit", newLimit, "didDrop", didDrop)
	}
	g.fireIfChanged(previous, newLimit)
}

func (g *Gradient2) NotifyOnChange(listener func(newLimit int)) {
	g.changeBroadcaster.notifyOnChange(listener)
}
