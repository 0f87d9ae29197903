package limit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettable(t *testing.T) {
	s := NewSettable(10)
	assert.Equal(t, 10, s.GetLimit())

	var changes []int
	s.NotifyOnChange(func(n int) { changes = append(changes, n) })

	s.SetLimit(20)
	assert.Equal(t, 20, s.GetLimit())
	assert.Equal(t, []int{20}, changes)

	s.OnSample(0, 1, 1, true)
	assert.Equal(t, 20, s.GetLimit())
	assert.Equal(t, []int{20}, changes, "OnSample must be a no-op for Settable")
}

func TestSettableNoNotifyWhenUnchanged(t *testing.T) {
	s := NewSettable(10)
	var changes int
	s.NotifyOnChange(func(n int) { changes++ })
	s.SetLimit(10)
	assert.Equal(t, 0, changes)
}
