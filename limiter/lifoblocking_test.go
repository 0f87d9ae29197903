package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climiter/climiter/limit"
)

func TestLIFOBlockingOrdersWaitersLastInFirstOut(t *testing.T) {
	simple, err := NewSimpleBuilder(limit.NewFixed(4)).Build()
	require.NoError(t, err)
	l, err := NewLIFOBlockingBuilder(simple).WithBacklog(10).Build()
	require.NoError(t, err)

	var held []Listener
	for i := 0; i < 4; i++ {
		listener, ok := l.Acquire(context.Background())
		require.True(t, ok)
		held = append(held, listener)
	}

	var mu sync.Mutex
	var completionOrder []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			listener, ok := l.Acquire(context.Background())
			if ok {
				mu.Lock()
				completionOrder = append(completionOrder, n)
				mu.Unlock()
				listener.OnSuccess()
			}
		}(i)
		time.Sleep(20 * time.Millisecond)
	}
	// Give every goroutine time to reach the backlog before releasing held permits.
	time.Sleep(50 * time.Millisecond)

	for _, listener := range held {
		listener.OnSuccess()
		time.Sleep(30 * time.Millisecond)
	}
	wg.Wait()

	require.Len(t, completionOrder, 5)
	// The 5th enqueued waiter (index 4) is served first. Each waiter releases its permit right away, and that release
	// wakes the next most recent waiter, so all 5 complete in reverse enqueue order after the first held permit frees.
	assert.Equal(t, []int{4, 3, 2, 1, 0}, completionOrder)
}

func TestLIFOBlockingRejectsWhenBacklogFull(t *testing.T) {
	simple, err := NewSimpleBuilder(limit.NewFixed(1)).Build()
	require.NoError(t, err)
	l, err := NewLIFOBlockingBuilder(simple).WithBacklog(1).Build()
	require.NoError(t, err)

	_, ok := l.Acquire(context.Background())
	require.True(t, ok)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		l.Acquire(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	_, ok = l.Acquire(context.Background())
	assert.False(t, ok, "a second waiter should be rejected outright once the backlog is full")

	wg.Wait()
}

func TestLIFOBlockingDequeuesOnContextCancellation(t *testing.T) {
	simple, err := NewSimpleBuilder(limit.NewFixed(1)).Build()
	require.NoError(t, err)
	l, err := NewLIFOBlockingBuilder(simple).WithBacklog(1).Build()
	require.NoError(t, err)

	_, ok := l.Acquire(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok = l.Acquire(ctx)
	assert.False(t, ok)

	// The timed-out waiter's slot should have been freed, so a fresh waiter can enqueue.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel2()
		l.Acquire(ctx2)
	}()
	time.Sleep(20 * time.Millisecond)
	wg.Wait()
}

func TestLIFOBlockingBuilderValidation(t *testing.T) {
	_, err := NewLIFOBlockingBuilder(nil).Build()
	assert.Error(t, err)

	simple, err := NewSimpleBuilder(limit.NewFixed(1)).Build()
	require.NoError(t, err)
	_, err = NewLIFOBlockingBuilder(simple).WithBacklog(0).Build()
	assert.Error(t, err)
}
