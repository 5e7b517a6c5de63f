package edgar

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Minimum(t *testing.T) {
	assert.Equal(t, 1, NewRateLimiter(0).Capacity())
	assert.Equal(t, 1, NewRateLimiter(-3).Capacity())
	assert.Equal(t, 8, NewRateLimiter(8).Capacity())
}

func TestRateLimiter_BoundsConcurrency(t *testing.T) {
	const permits, tasks = 3, 20
	l := NewRateLimiter(permits)

	var cur, maxSeen, done atomic.Int64
	var wg sync.WaitGroup
	for range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, l.Acquire(context.Background())) {
				return
			}
			defer l.Release()

			n := cur.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
			done.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(tasks), done.Load())
	assert.LessOrEqual(t, maxSeen.Load(), int64(permits))
	assert.LessOrEqual(t, l.Peak(), permits)
	assert.GreaterOrEqual(t, l.Peak(), 1)
	assert.Zero(t, l.InFlight())
}

func TestRateLimiter_AcquireCancelled(t *testing.T) {
	l := NewRateLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, l.InFlight())

	l.Release()
	assert.Zero(t, l.InFlight())
	assert.Equal(t, 1, l.Peak())
}

func TestRateLimiter_OverReleasePanics(t *testing.T) {
	l := NewRateLimiter(2)
	assert.Panics(t, func() { l.Release() })
}
