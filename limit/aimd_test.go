package limit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIMDIncrease(t *testing.T) {
	a, err := NewAIMDBuilder().WithLimits(1, 1000, 10).Build()
	require.NoError(t, err)

	a.OnSample(0, time.Millisecond.Nanoseconds(), 10, false)
	assert.Equal(t, 11, a.GetLimit())
}

func TestAIMDDecrease(t *testing.T) {
	a, err := NewAIMDBuilder().WithLimits(1, 1000, 10).Build()
	require.NoError(t, err)

	a.OnSample(0, 0, 0, true)
	assert.Equal(t, 9, a.GetLimit())
}

func TestAIMDDecreaseOnTimeout(t *testing.T) {
	a, err := NewAIMDBuilder().WithLimits(1, 1000, 10).WithTimeoutThreshold(5 * time.Millisecond).Build()
	require.NoError(t, err)

	a.OnSample(0, (10 * time.Millisecond).Nanoseconds(), 10, false)
	assert.Equal(t, 9, a.GetLimit())
}

func TestAIMDClampsToMaxAndMin(t *testing.T) {
	a, err := NewAIMDBuilder().WithLimits(5, 6, 6).Build()
	require.NoError(t, err)

	a.OnSample(0, time.Millisecond.Nanoseconds(), 6, false)
	assert.Equal(t, 6, a.GetLimit())

	for i := 0; i < 5; i++ {
		a.OnSample(0, 0, 0, true)
	}
	assert.Equal(t, 5, a.GetLimit())
}

func TestAIMDBuilderValidation(t *testing.T) {
	_, err := NewAIMDBuilder().WithBackoffRatio(1.5).Build()
	assert.Error(t, err)

	_, err = NewAIMDBuilder().WithLimits(10, 5, 10).Build()
	assert.Error(t, err)
}

func TestAIMDChangeListener(t *testing.T) {
	a, err := NewAIMDBuilder().WithLimits(1, 1000, 10).Build()
	require.NoError(t, err)

	var got []int
	a.NotifyOnChange(func(n int) { got = append(got, n) })
	a.OnSample(0, time.Millisecond.Nanoseconds(), 10, false)
	require.Len(t, got, 1)
	assert.Equal(t, 11, got[0])
}
