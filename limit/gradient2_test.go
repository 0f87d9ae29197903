package limit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradient2StableRttDoesNotCollapse(t *testing.T) {
	g, err := NewGradient2Builder().WithLimits(1, 200, 20).Build()
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		g.OnSample(0, (10 * time.Millisecond).Nanoseconds(), 20, false)
	}
	// At equilibrium short == long, so gradient == 1 and each sample adds queueSize (ceil(sqrt(limit))) to the
	// limit until it is clamped at maxLimit. It should not collapse.
	assert.Greater(t, g.GetLimit(), 1)
}

func TestGradient2HalvesOnDrop(t *testing.T) {
	g, err := NewGradient2Builder().WithLimits(1, 200, 20).Build()
	require.NoError(t, err)

	g.OnSample(0, (10 * time.Millisecond).Nanoseconds(), 20, true)
	assert.Equal(t, 10, g.GetLimit())
}

func TestGradient2DecreasesWhenShortRttRegresses(t *testing.T) {
	g, err := NewGradient2Builder().WithWindows(5, 50).WithLimits(1, 200, 20).Build()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		g.OnSample(0, (10 * time.Millisecond).Nanoseconds(), 20, false)
	}
	before := g.GetLimit()
	for i := 0; i < 10; i++ {
		g.OnSample(0, (100 * time.Millisecond).Nanoseconds(), 20, false)
	}
	assert.Less(t, g.GetLimit(), before)
}

func TestGradient2ResetBiasNudgesLongWindowUpward(t *testing.T) {
	g, err := NewGradient2Builder().WithWindows(5, 50).WithResetBiasThreshold(3).WithLimits(1, 200, 20).Build()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		g.OnSample(0, (10 * time.Millisecond).Nanoseconds(), 20, false)
	}
	// The first 5 slow samples still fall in the 10-sample warmup, where the Min combiner keeps both averages at
	// 10ms; the 3 after it keep short above long, and the 3rd triggers the nudge. Without the nudge long would be
	// about 14.5ms; with it, about 26.3ms.
	for i := 0; i < 8; i++ {
		g.OnSample(0, (50 * time.Millisecond).Nanoseconds(), 20, false)
	}
	assert.Greater(t, g.longRTT.Get(), 20*float64(time.Millisecond))
}
