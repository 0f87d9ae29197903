package limiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climiter/climiter/limit"
)

func TestSimpleAdmitsUpToLimit(t *testing.T) {
	l, err := NewSimpleBuilder(limit.NewFixed(2)).Build()
	require.NoError(t, err)

	l1, ok := l.Acquire(context.Background())
	require.True(t, ok)
	l2, ok := l.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 2, l.Inflight())

	_, ok = l.Acquire(context.Background())
	assert.False(t, ok)

	l1.OnSuccess()
	assert.Equal(t, 1, l.Inflight())

	l3, ok := l.Acquire(context.Background())
	require.True(t, ok)
	l2.OnSuccess()
	l3.OnSuccess()
	assert.Equal(t, 0, l.Inflight())
}

func TestSimpleListenerIdempotent(t *testing.T) {
	l, err := NewSimpleBuilder(limit.NewFixed(1)).Build()
	require.NoError(t, err)

	listener, ok := l.Acquire(context.Background())
	require.True(t, ok)
	listener.OnSuccess()
	listener.OnSuccess()
	listener.OnDropped()
	assert.Equal(t, 0, l.Inflight())
}

func TestSimpleBypassNeverCountsOrSamples(t *testing.T) {
	settable := limit.NewSettable(1)
	l, err := NewSimpleBuilder(settable).WithBypass(func(ctx context.Context) bool { return true }).Build()
	require.NoError(t, err)

	listener, ok := l.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 0, l.Inflight())
	listener.OnDropped()
	assert.Equal(t, 1, settable.GetLimit())
}

func TestSimpleTracksLimitIncrease(t *testing.T) {
	settable := limit.NewSettable(1)
	l, err := NewSimpleBuilder(settable).Build()
	require.NoError(t, err)

	_, ok := l.Acquire(context.Background())
	require.True(t, ok)
	_, ok = l.Acquire(context.Background())
	assert.False(t, ok)

	settable.SetLimit(2)
	_, ok = l.Acquire(context.Background())
	assert.True(t, ok)
}

func TestSimpleTracksLimitDecreaseImmediately(t *testing.T) {
	settable := limit.NewSettable(10)
	l, err := NewSimpleBuilder(settable).Build()
	require.NoError(t, err)

	listeners := make([]Listener, 0, 10)
	for i := 0; i < 10; i++ {
		listener, ok := l.Acquire(context.Background())
		require.True(t, ok)
		listeners = append(listeners, listener)
	}
	assert.Equal(t, 10, l.Inflight())

	settable.SetLimit(2)

	_, ok := l.Acquire(context.Background())
	assert.False(t, ok, "inflight already exceeds the new limit, so no further Acquire should be admitted")

	for _, listener := range listeners {
		listener.OnSuccess()
	}
	assert.Equal(t, 0, l.Inflight())

	for i := 0; i < 2; i++ {
		_, ok := l.Acquire(context.Background())
		assert.True(t, ok)
	}
	_, ok = l.Acquire(context.Background())
	assert.False(t, ok)
}

func TestSimpleBuilderValidation(t *testing.T) {
	_, err := NewSimpleBuilder(nil).Build()
	assert.Error(t, err)
}
