package alerts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemorySetMarksOnce(t *testing.T) {
	set := NewMemorySet()
	ctx := context.Background()

	first, err := set.MarkIfNew(ctx, "game-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := set.MarkIfNew(ctx, "game-1")
	require.NoError(t, err)
	require.False(t, second)

	require.NoError(t, set.Clear(ctx, "game-1"))
	again, err := set.MarkIfNew(ctx, "game-1")
	require.NoError(t, err)
	require.True(t, again)
}

func TestMemorySetConcurrentCallersFireOnce(t *testing.T) {
	set := NewMemorySet()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if fresh, _ := set.MarkIfNew(context.Background(), "game-7"); fresh {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, winners.Load())
}
