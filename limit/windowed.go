package limit

import (
	"sync"
	"time"

	"github.com/climiter/climiter/internal/util"
)

// Windowed wraps any Limit and batches incoming samples into a SampleWindow, forwarding a single synthesized
// OnSample to the underlying estimator once the window closes rather than on every sample. This trades reaction
// latency for a cheaper, steadier stream of updates into estimators like Vegas or Gradient2 that are sensitive to
// single-sample noise.
//
// A window closes once minWindowTime has elapsed AND either minSamples have been collected or maxWindowTime has
// elapsed, whichever comes first on the sample-count side.
type Windowed struct {
	delegate       Limit
	clock          util.Clock
	minWindowTime  time.Duration
	maxWindowTime  time.Duration
	minSamples     int
	newWindow      func() SampleWindow

	mu         sync.Mutex
	window     SampleWindow
	windowOpen time.Time
}

// WindowedBuilder builds a Windowed wrapper. Not concurrency safe; build once at startup.
type WindowedBuilder struct {
	clock         util.Clock
	minWindowTime time.Duration
	maxWindowTime time.Duration
	minSamples    int
	newWindow     func() SampleWindow
}

// NewWindowedBuilder returns a WindowedBuilder with the default minimum window of 1 second, maximum window of 10
// seconds, minimum sample threshold of 1, a MinWindow factory, and the wall clock.
func NewWindowedBuilder() *WindowedBuilder {
	return &WindowedBuilder{
		clock:         util.WallClock,
		minWindowTime: time.Second,
		maxWindowTime: 10 * time.Second,
		minSamples:    1,
		newWindow:     func() SampleWindow { return NewMinWindow() },
	}
}

// WithWindowTimes configures the minimum and maximum time a window stays open before it's forwarded.
func (b *WindowedBuilder) WithWindowTimes(minWindowTime, maxWindowTime time.Duration) *WindowedBuilder {
	b.minWindowTime = minWindowTime
	b.maxWindowTime = maxWindowTime
	return b
}

// WithMinSamples configures how many samples must be collected, after minWindowTime has elapsed, before the
// window is forwarded early (rather than waiting for maxWindowTime).
func (b *WindowedBuilder) WithMinSamples(minSamples int) *WindowedBuilder {
	b.minSamples = minSamples
	return b
}

// WithSampleWindow configures the SampleWindow flavor used to aggregate samples within a window. Defaults to
// MinWindow; use AverageWindow or PercentileWindow for a less noise-sensitive tracked RTT.
func (b *WindowedBuilder) WithSampleWindow(newWindow func() SampleWindow) *WindowedBuilder {
	b.newWindow = newWindow
	return b
}

// WithClock overrides the clock used to time window rotation, for deterministic tests.
func (b *WindowedBuilder) WithClock(clock util.Clock) *WindowedBuilder {
	b.clock = clock
	return b
}

// Build wraps delegate in a Windowed estimator, or returns a ConfigError if the builder's settings are invalid.
func (b *WindowedBuilder) Build(delegate Limit) (*Windowed, error) {
	if delegate == nil {
		return nil, &ConfigError{Field: "delegate", Message: "must not be nil"}
	}
	if b.minWindowTime <= 0 || b.maxWindowTime < b.minWindowTime {
		return nil, &ConfigError{Field: "windowTimes", Message: "maxWindowTime must be >= minWindowTime > 0"}
	}
	return &Windowed{
		delegate:      delegate,
		clock:         b.clock,
		minWindowTime: b.minWindowTime,
		maxWindowTime: b.maxWindowTime,
		minSamples:    b.minSamples,
		newWindow:     b.newWindow,
		window:        b.newWindow(),
		windowOpen:    b.clock.Now(),
	}, nil
}

func (w *Windowed) GetLimit() int {
	return w.delegate.GetLimit()
}

func (w *Windowed) OnSample(startNanos, rttNanos int64, inflight int, didDrop bool) {
	w.mu.Lock()
	if didDrop {
		w.window = w.window.AddDroppedSample(inflight)
	} else {
		w.window = w.window.AddSample(rttNanos, inflight)
	}

	elapsed := w.clock.Now().Sub(w.windowOpen)
	ready := elapsed >= w.maxWindowTime ||
		(elapsed >= w.minWindowTime && w.window.SampleCount() >= w.minSamples)
	if !ready {
		w.mu.Unlock()
		return
	}

	closed := w.window
	w.window = w.newWindow()
	w.windowOpen = w.clock.Now()
	w.mu.Unlock()

	if closed.SampleCount() == 0 && !closed.DidDrop() {
		return
	}
	w.delegate.OnSample(startNanos, closed.TrackedRttNanos(), closed.MaxInflight(), closed.DidDrop())
}

func (w *Windowed) NotifyOnChange(listener func(newLimit int)) {
	w.delegate.NotifyOnChange(listener)
}
