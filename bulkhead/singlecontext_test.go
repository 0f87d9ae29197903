package bulkhead

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climiter/climiter/limit"
	"github.com/climiter/climiter/limiter"
)

func TestSingleContextDispatchesUnderPinnedKey(t *testing.T) {
	l, err := limiter.NewSimpleBuilder(limit.NewFixed(1)).Build()
	require.NoError(t, err)
	inner, err := NewBuilder[string](l).WithBacklog(5).Build()
	require.NoError(t, err)
	sc := NewSingleContext("tenant-a", inner, nil)

	f := sc.Execute(context.Background(), "tenant-a", func(ctx context.Context) (string, error) {
		return "done", nil
	})
	result, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, "tenant-a", sc.Key())
}
