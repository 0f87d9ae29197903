package limit

import (
	"github.com/influxdata/tdigest"
)

// SampleWindow accumulates RTT and inflight observations between estimator updates. Implementations are immutable:
// AddSample and AddDroppedSample return a new window rather than mutating the receiver, so a caller can hold a
// reference to a window snapshot while another goroutine rotates the live one.
type SampleWindow interface {
	// AddSample folds a completed, non-dropped request into the window and returns the resulting window.
	AddSample(rttNanos int64, inflight int) SampleWindow

	// AddDroppedSample folds a dropped request into the window. Drops never influence the RTT aggregates, only
	// maxInflight and DidDrop.
	AddDroppedSample(inflight int) SampleWindow

	// CandidateRttNanos is the window's best (lowest) observed RTT, used to refine an estimator's minRtt baseline.
	CandidateRttNanos() int64

	// TrackedRttNanos is the RTT the estimator should actually react to: the window-specific central tendency.
	TrackedRttNanos() int64

	// MaxInflight is the highest inflight count observed while this window was open.
	MaxInflight() int

	// SampleCount is the number of AddSample calls folded into this window (AddDroppedSample does not count).
	SampleCount() int

	// DidDrop reports whether any dropped sample was folded into this window.
	DidDrop() bool
}

type baseWindow struct {
	candidateRttNanos int64
	maxInflight       int
	sampleCount       int
	didDrop           bool
}

func (b baseWindow) CandidateRttNanos() int64 { return b.candidateRttNanos }
func (b baseWindow) MaxInflight() int         { return b.maxInflight }
func (b baseWindow) SampleCount() int         { return b.sampleCount }
func (b baseWindow) DidDrop() bool            { return b.didDrop }

func minNonZero(a, b int64) int64 {
	if a == 0 || (b != 0 && b < a) {
		return b
	}
	return a
}

func maxInt(a, b int) int {
	if b > a {
		return b
	}
	return a
}

// MinWindow tracks only the minimum RTT seen; candidate and tracked are the same value. Cheapest of the three
// window flavors and a reasonable default for Vegas, which only cares about the minimum.
type MinWindow struct {
	baseWindow
}

// NewMinWindow returns an empty MinWindow.
func NewMinWindow() *MinWindow {
	return &MinWindow{}
}

func (w *MinWindow) AddSample(rttNanos int64, inflight int) SampleWindow {
	return &MinWindow{baseWindow{
		candidateRttNanos: minNonZero(w.candidateRttNanos, rttNanos),
		maxInflight:       maxInt(w.maxInflight, inflight),
		sampleCount:       w.sampleCount + 1,
		didDrop:           w.didDrop,
	}}
}

func (w *MinWindow) AddDroppedSample(inflight int) SampleWindow {
	return &MinWindow{baseWindow{
		candidateRttNanos: w.candidateRttNanos,
		maxInflight:       maxInt(w.maxInflight, inflight),
		sampleCount:       w.sampleCount,
		didDrop:           true,
	}}
}

func (w *MinWindow) TrackedRttNanos() int64 {
	return w.candidateRttNanos
}

// AverageWindow tracks the minimum RTT as its candidate but the plain mean as its tracked value, which smooths out
// single-sample noise at the cost of reacting more slowly to a genuine regime change.
type AverageWindow struct {
	baseWindow
	sumRttNanos int64
}

// NewAverageWindow returns an empty AverageWindow.
func NewAverageWindow() *AverageWindow {
	return &AverageWindow{}
}

func (w *AverageWindow) AddSample(rttNanos int64, inflight int) SampleWindow {
	return &AverageWindow{
		baseWindow: baseWindow{
			candidateRttNanos: minNonZero(w.candidateRttNanos, rttNanos),
			maxInflight:       maxInt(w.maxInflight, inflight),
			sampleCount:       w.sampleCount + 1,
			didDrop:           w.didDrop,
		},
		sumRttNanos: w.sumRttNanos + rttNanos,
	}
}

func (w *AverageWindow) AddDroppedSample(inflight int) SampleWindow {
	return &AverageWindow{
		baseWindow: baseWindow{
			candidateRttNanos: w.candidateRttNanos,
			maxInflight:       maxInt(w.maxInflight, inflight),
			sampleCount:       w.sampleCount,
			didDrop:           true,
		},
		sumRttNanos: w.sumRttNanos,
	}
}

func (w *AverageWindow) TrackedRttNanos() int64 {
	if w.sampleCount == 0 {
		return 0
	}
	return w.sumRttNanos / int64(w.sampleCount)
}

// PercentileWindow tracks the minimum RTT as its candidate and a streaming quantile estimate, backed by a
// t-digest, as its tracked value. Useful when the tail (not the mean) is what should drive the estimator, e.g. a
// p90 window that reacts to latency creep before it dominates the average.
//
// Unlike MinWindow and AverageWindow, the underlying digest is mutated in place and shared by reference across the
// windows AddSample returns, since t-digest offers no cheap clone. Callers only ever hold the most recently
// returned window (the windowed wrapper discards a window once it forwards a synthesized sample), so this is safe
// in practice despite not being strictly functionally immutable.
type PercentileWindow struct {
	baseWindow
	percentile float64
	digest     *tdigest.TDigest
}

// NewPercentileWindow returns an empty PercentileWindow for the given percentile, which must be in (0, 1).
func NewPercentileWindow(percentile float64) *PercentileWindow {
	return &PercentileWindow{
		percentile: percentile,
		digest:     tdigest.NewWithCompression(100),
	}
}

func (w *PercentileWindow) AddSample(rttNanos int64, inflight int) SampleWindow {
	digest := w.digest
	if digest == nil {
		digest = tdigest.NewWithCompression(100)
	}
	digest.Add(float64(rttNanos), 1)
	return &PercentileWindow{
		baseWindow: baseWindow{
			candidateRttNanos: minNonZero(w.candidateRttNanos, rttNanos),
			maxInflight:       maxInt(w.maxInflight, inflight),
			sampleCount:       w.sampleCount + 1,
			didDrop:           w.didDrop,
		},
		percentile: w.percentile,
		digest:     digest,
	}
}

func (w *PercentileWindow) AddDroppedSample(inflight int) SampleWindow {
	return &PercentileWindow{
		baseWindow: baseWindow{
			candidateRttNanos: w.candidateRttNanos,
			maxInflight:       maxInt(w.maxInflight, inflight),
			sampleCount:       w.sampleCount,
			didDrop:           true,
		},
		percentile: w.percentile,
		digest:     w.digest,
	}
}

func (w *PercentileWindow) TrackedRttNanos() int64 {
	if w.sampleCount == 0 || w.digest == nil {
		return 0
	}
	return int64(w.digest.Quantile(w.percentile))
}
