package limit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimum(t *testing.T) {
	m := NewMinimum()
	assert.False(t, m.HasValue())
	assert.Equal(t, 5.0, m.Add(5))
	assert.True(t, m.HasValue())
	assert.Equal(t, 5.0, m.Add(8))
	assert.Equal(t, 3.0, m.Add(3))
	m.Reset()
	assert.False(t, m.HasValue())
	assert.Equal(t, 0.0, m.Get())
}

func TestMinimumIgnoresZeroSamples(t *testing.T) {
	m := NewMinimum()
	m.Add(5)
	assert.Equal(t, 5.0, m.Add(0))
}

func TestSingleValue(t *testing.T) {
	s := NewSingleValue()
	assert.Equal(t, 5.0, s.Add(5))
	assert.Equal(t, 2.0, s.Add(2))
	assert.Equal(t, 2.0, s.Get())
}

func TestExponentialAverageWarmupUsesCombiner(t *testing.T) {
	e := NewExponentialAverage(10, 3, Min)
	assert.Equal(t, 10.0, e.Add(10))
	assert.Equal(t, 5.0, e.Add(5))
	assert.Equal(t, 5.0, e.Add(8))
}

func TestExponentialAverageDecaysAfterWarmup(t *testing.T) {
	e := NewExponentialAverage(10, 1, nil)
	e.Add(10)
	v := e.Add(20)
	// alpha = 2/(10+1), v = 10*(1-alpha) + 20*alpha
	alpha := 2.0 / 11.0
	assert.InDelta(t, 10*(1-alpha)+20*alpha, v, 1e-9)
}

func TestExponentialAverageUpdate(t *testing.T) {
	e := NewExponentialAverage(10, 1, nil)
	e.Add(10)
	v := e.Update(func(x float64) float64 { return x * 2 })
	assert.Equal(t, 20.0, v)
}
