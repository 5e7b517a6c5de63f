package edgar

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
)

// RateLimiter bounds the number of filing fetches holding a permit at once.
// One instance is created per crawl and passed to every fetch task.
type RateLimiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewRateLimiter returns a limiter with n permits (minimum 1).
func NewRateLimiter(n int) *RateLimiter {
	if n < 1 {
		n = 1
	}
	return &RateLimiter{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: int64(n),
	}
}

// Acquire blocks until a permit is free or ctx is done.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return eris.Wrap(err, "edgar: acquire permit")
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release returns a permit. Releasing more than was acquired panics.
func (l *RateLimiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Capacity is the configured permit count.
func (l *RateLimiter) Capacity() int { return int(l.capacity) }

// InFlight is the number of permits currently held.
func (l *RateLimiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak is the highest number of permits held at once since creation.
func (l *RateLimiter) Peak() int { return int(l.peak.Load()) }
