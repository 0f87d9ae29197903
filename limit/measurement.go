package limit

// Measurement aggregates a stream of numeric samples into a single scalar.
//
// Implementations are not concurrency safe; callers serialize access (the estimators that embed a Measurement are
// themselves single-writer per the package's OnSample contract).
type Measurement interface {
	// Add adds a sample to the series and returns the new aggregate value.
	Add(sample float64) float64

	// Get returns the current aggregate value.
	Get() float64

	// Update applies an arbitrary transform to the current value and returns the result, without adding a new
	// sample. Used by estimators that need to nudge an aggregate outside the normal Add path, such as Gradient2's
	// long-window bias correction.
	Update(f func(float64) float64) float64

	// Reset clears the aggregate back to its zero state.
	Reset()
}

// Minimum tracks the smallest non-zero sample added since the last Reset. The first sample is always recorded, even
// a zero, and a recorded zero is never replaced; after the first sample, zero samples are ignored.
type Minimum struct {
	value    float64
	hasValue bool
}

// NewMinimum returns a new Minimum measurement.
func NewMinimum() *Minimum {
	return &Minimum{}
}

func (m *Minimum) Add(sample float64) float64 {
	if !m.hasValue || (sample != 0 && sample < m.value) {
		m.value = sample
		m.hasValue = true
	}
	return m.value
}

func (m *Minimum) Get() float64 {
	return m.value
}

func (m *Minimum) Update(f func(float64) float64) float64 {
	m.value = f(m.value)
	m.hasValue = true
	return m.value
}

func (m *Minimum) Reset() {
	m.value = 0
	m.hasValue = false
}

// HasValue reports whether a sample has ever been recorded, resolving the spec ambiguity around a MinimumMeasurement
// that otherwise can't distinguish "empty" from a genuine zero-valued sample.
func (m *Minimum) HasValue() bool {
	return m.hasValue
}

// SingleValue holds the most recently added sample.
type SingleValue struct {
	value float64
}

// NewSingleValue returns a new SingleValue measurement.
func NewSingleValue() *SingleValue {
	return &SingleValue{}
}

func (s *SingleValue) Add(sample float64) float64 {
	s.value = sample
	return s.value
}

func (s *SingleValue) Get() float64 {
	return s.value
}

func (s *SingleValue) Update(f func(float64) float64) float64 {
	s.value = f(s.value)
	return s.value
}

func (s *SingleValue) Reset() {
	s.value = 0
}

// Combiner merges a previous aggregate with a new sample during an ExponentialAverage's warmup phase, before decay
// begins. Min biases the aggregate toward the best (lowest) observation seen so far, which is useful for RTT
// baselines; Average takes the midpoint of the previous aggregate and the new sample.
type Combiner func(previous, sample float64) float64

// Min is a Combiner that keeps the smaller of the previous aggregate and the new sample.
func Min(previous, sample float64) float64 {
	if previous == 0 || sample < previous {
		return sample
	}
	return previous
}

// Average is a Combiner that returns the midpoint of the previous aggregate and the new sample, so each newer
// sample weighs as much as all earlier ones combined; it is not a running mean over the sample count.
// ExponentialAverage uses it as the warmup combiner when none is given.
func Average(previous, sample float64) float64 {
	return (previous + sample) / 2
}

// ExponentialAverage is an exponentially weighted moving average with a configurable warmup period. During the
// first warmupSamples additions, combiner(previous, sample) is applied directly instead of decaying, which lets
// callers bias the warmup phase (e.g. toward the minimum, for an RTT baseline that shouldn't be dragged up by a
// slow first request). After warmup, Add applies standard EWMA decay with smoothing factor alpha = 2/(window+1).
//
// This type is not concurrency safe.
type ExponentialAverage struct {
	alpha         float64
	warmupSamples int
	combiner      Combiner

	count int
	value float64
}

// NewExponentialAverage returns an ExponentialAverage with the given window size (in samples, controlling how many
// past samples remain influential), warmupSamples, and combiner used during warmup.
func NewExponentialAverage(window int, warmupSamples int, combiner Combiner) *ExponentialAverage {
	if combiner == nil {
		combiner = Average
	}
	return &ExponentialAverage{
		alpha:         2 / (float64(window) + 1),
		warmupSamples: warmupSamples,
		combiner:      combiner,
	}
}

func (e *ExponentialAverage) Add(sample float64) float64 {
	if e.count < e.warmupSamples {
		e.count++
		if e.count == 1 {
			e.value = sample
		} else {
			e.value = e.combiner(e.value, sample)
		}
		return e.value
	}
	e.value = e.value*(1-e.alpha) + sample*e.alpha
	return e.value
}

func (e *ExponentialAverage) Get() float64 {
	return e.value
}

func (e *ExponentialAverage) Update(f func(float64) float64) float64 {
	e.value = f(e.value)
	return e.value
}

func (e *ExponentialAverage) Reset() {
	e.count = 0
	e.value = 0
}
