package limit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinWindow(t *testing.T) {
	var w SampleWindow = NewMinWindow()
	w = w.AddSample(30, 5)
	w = w.AddSample(10, 8)
	w = w.AddSample(20, 3)
	assert.Equal(t, int64(10), w.CandidateRttNanos())
	assert.Equal(t, int64(10), w.TrackedRttNanos())
	assert.Equal(t, 8, w.MaxInflight())
	assert.Equal(t, 3, w.SampleCount())
	assert.False(t, w.DidDrop())
}

func TestMinWindowDroppedSampleDoesNotAffectRtt(t *testing.T) {
	var w SampleWindow = NewMinWindow()
	w = w.AddSample(30, 2)
	w = w.AddDroppedSample(9)
	assert.Equal(t, int64(30), w.CandidateRttNanos())
	assert.Equal(t, 9, w.MaxInflight())
	assert.Equal(t, 1, w.SampleCount())
	assert.True(t, w.DidDrop())
}

func TestAverageWindow(t *testing.T) {
	var w SampleWindow = NewAverageWindow()
	w = w.AddSample(10, 1)
	w = w.AddSample(20, 1)
	w = w.AddSample(30, 1)
	assert.Equal(t, int64(10), w.CandidateRttNanos())
	assert.Equal(t, int64(20), w.TrackedRttNanos())
}

func TestPercentileWindow(t *testing.T) {
	var w SampleWindow = NewPercentileWindow(0.9)
	for i := 1; i <= 100; i++ {
		w = w.AddSample(int64(i), 1)
	}
	assert.Equal(t, int64(1), w.CandidateRttNanos())
	// p90 of 1..100 should land close to 90.
	assert.InDelta(t, 90, float64(w.TrackedRttNanos()), 5)
}

func TestAddSampleReturnsNewWindowInstance(t *testing.T) {
	w1 := NewMinWindow()
	w2 := w1.AddSample(10, 1)
	assert.NotSame(t, w1, w2)
	assert.Equal(t, 0, w1.SampleCount())
	assert.Equal(t, 1, w2.SampleCount())
}
