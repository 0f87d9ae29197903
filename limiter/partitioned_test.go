package limiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climiter/climiter/limit"
)

func TestPartitionedBorrowsIdleCapacity(t *testing.T) {
	l, err := NewPartitionedBuilder(limit.NewFixed(10)).
		WithPartition(PartitionSpec{Name: "batch", Percent: 0.3}).
		WithPartition(PartitionSpec{Name: "live", Percent: 0.7}).
		WithPartitionResolver(func(ctx context.Context) string {
			name, _ := AttributeFromContext(ctx)
			return name
		}).
		Build()
	require.NoError(t, err)

	ctx := ContextWithAttribute(context.Background(), "batch")
	var listeners []Listener
	for i := 0; i < 10; i++ {
		listener, ok := l.Acquire(ctx)
		require.Truef(t, ok, "expected admit %d", i)
		listeners = append(listeners, listener)
	}
	_, ok := l.Acquire(ctx)
	assert.False(t, ok, "11th batch-only request should be rejected once total capacity is exhausted")

	for _, listener := range listeners {
		listener.OnSuccess()
	}
}

func TestPartitionedGuaranteesDedicatedShareUnderContention(t *testing.T) {
	l, err := NewPartitionedBuilder(limit.NewFixed(10)).
		WithPartition(PartitionSpec{Name: "batch", Percent: 0.3}).
		WithPartition(PartitionSpec{Name: "live", Percent: 0.7}).
		WithPartitionResolver(func(ctx context.Context) string {
			name, _ := AttributeFromContext(ctx)
			return name
		}).
		Build()
	require.NoError(t, err)

	batchCtx := ContextWithAttribute(context.Background(), "batch")
	liveCtx := ContextWithAttribute(context.Background(), "live")

	// Saturate total capacity with batch traffic first.
	for i := 0; i < 10; i++ {
		_, ok := l.Acquire(batchCtx)
		require.True(t, ok)
	}
	_, ok := l.Acquire(batchCtx)
	assert.False(t, ok)

	// Live's own guaranteed share (ceil(10*0.7)=7) stays reachable while total is saturated by batch: a request is
	// admitted when either total is below totalLimit or its own partition is below its partition limit, so live
	// gets 7 admits and the 8th is rejected.
	for i := 0; i < 7; i++ {
		_, ok = l.Acquire(liveCtx)
		assert.Truef(t, ok, "expected live admit %d", i)
	}
	_, ok = l.Acquire(liveCtx)
	assert.False(t, ok)
}

func TestPartitionedDefaultBucketForUnmatchedRequests(t *testing.T) {
	l, err := NewPartitionedBuilder(limit.NewFixed(5)).
		WithPartition(PartitionSpec{Name: "batch", Percent: 0.5}).
		Build()
	require.NoError(t, err)

	listener, ok := l.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 1, l.Inflight())
	listener.OnSuccess()
}

func TestPartitionedBuilderValidation(t *testing.T) {
	_, err := NewPartitionedBuilder(limit.NewFixed(10)).
		WithPartition(PartitionSpec{Name: "a", Percent: 0.6}).
		WithPartition(PartitionSpec{Name: "b", Percent: 0.6}).
		Build()
	assert.Error(t, err, "percentages summing above 1.0 should be rejected")

	_, err = NewPartitionedBuilder(limit.NewFixed(10)).
		WithPartition(PartitionSpec{Name: "a", Percent: 1.5}).
		Build()
	assert.Error(t, err)

	_, err = NewPartitionedBuilder(limit.NewFixed(10)).
		WithPartition(PartitionSpec{Name: "a", Percent: 0.1}).
		WithPartition(PartitionSpec{Name: "a", Percent: 0.1}).
		Build()
	assert.Error(t, err, "duplicate partition names should be rejected")
}

func TestPartitionedPredicateTakesPriorityOverResolver(t *testing.T) {
	l, err := NewPartitionedBuilder(limit.NewFixed(10)).
		WithPartition(PartitionSpec{Name: "priority", Percent: 0.5, Predicate: func(ctx context.Context) bool {
			v, _ := AttributeFromContext(ctx)
			return v == "vip"
		}}).
		WithPartitionResolver(func(ctx context.Context) string { return "" }).
		Build()
	require.NoError(t, err)

	listener, ok := l.Acquire(ContextWithAttribute(context.Background(), "vip"))
	require.True(t, ok)
	listener.OnSuccess()
}
