package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces page visits so candidate navigations within one browser
// session do not hammer the marketplace.
type Limiter interface {
	Wait(ctx context.Context) error
}

type jitterLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

// New returns a limiter enforcing a randomized delay in [min, max] between
// consecutive Wait calls.
func New(min, max time.Duration) Limiter {
	if max < min {
		max = min
	}
	return &jitterLimiter{minDelay: min, maxDelay: max}
}

func (l *jitterLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.delay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *jitterLimiter) delay() time.Duration {
	if l.minDelay == l.maxDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(rand.Int63n(int64(l.maxDelay-l.minDelay)))
}
