package limit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climiter/climiter/internal/testutil"
)

type recordingLimit struct {
	samples []struct {
		rtt      int64
		inflight int
		didDrop  bool
	}
	limit int
}

func (r *recordingLimit) GetLimit() int { return r.limit }

func (r *recordingLimit) OnSample(startNanos, rttNanos int64, inflight int, didDrop bool) {
	r.samples = append(r.samples, struct {
		rtt      int64
		inflight int
		didDrop  bool
	}{rttNanos, inflight, didDrop})
}

func (r *recordingLimit) NotifyOnChange(func(int)) {}

func TestWindowedForwardsOneSamplePerRotation(t *testing.T) {
	clock := testutil.NewTestClock()
	delegate := &recordingLimit{limit: 10}
	w, err := NewWindowedBuilder().
		WithClock(clock).
		WithWindowTimes(time.Second, 10*time.Second).
		WithMinSamples(1).
		Build(delegate)
	require.NoError(t, err)

	w.OnSample(0, 10, 5, false)
	assert.Empty(t, delegate.samples, "window shouldn't rotate before minWindowTime elapses")

	clock.Advance(2 * time.Second)
	w.OnSample(0, 20, 8, false)
	require.Len(t, delegate.samples, 1)
	assert.Equal(t, int64(10), delegate.samples[0].rtt) // MinWindow candidate/tracked is the minimum RTT.
	assert.Equal(t, 8, delegate.samples[0].inflight)
}

func TestWindowedWaitsForMinSamplesWithinWindow(t *testing.T) {
	clock := testutil.NewTestClock()
	delegate := &recordingLimit{limit: 10}
	w, err := NewWindowedBuilder().
		WithClock(clock).
		WithWindowTimes(time.Second, 10*time.Second).
		WithMinSamples(3).
		Build(delegate)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	w.OnSample(0, 10, 1, false)
	w.OnSample(0, 20, 1, false)
	assert.Empty(t, delegate.samples)

	w.OnSample(0, 30, 1, false)
	require.Len(t, delegate.samples, 1)
}

func TestWindowedForwardsAtMaxWindowTimeRegardlessOfSampleCount(t *testing.T) {
	clock := testutil.NewTestClock()
	delegate := &recordingLimit{limit: 10}
	w, err := NewWindowedBuilder().
		WithClock(clock).
		WithWindowTimes(time.Second, 5*time.Second).
		WithMinSamples(100).
		Build(delegate)
	require.NoError(t, err)

	w.OnSample(0, 10, 1, false)
	clock.Advance(6 * time.Second)
	w.OnSample(0, 20, 1, false)
	require.Len(t, delegate.samples, 1)
}

func TestWindowedDelegatesGetLimit(t *testing.T) {
	delegate := &recordingLimit{limit: 42}
	w, err := NewWindowedBuilder().Build(delegate)
	require.NoError(t, err)
	assert.Equal(t, 42, w.GetLimit())
}
