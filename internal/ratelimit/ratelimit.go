package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces out requests to the booking shop.
type Limiter interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

// JitterLimiter keeps a random gap in [minDelay, maxDelay] between request
// starts. Concurrent callers are queued one gap apart. Consecutive errors
// stretch the gap, successes shrink it back towards the configured minimum.
type JitterLimiter struct {
	mu            sync.Mutex
	baseMin       time.Duration
	baseMax       time.Duration
	minDelay      time.Duration
	maxDelay      time.Duration
	next          time.Time
	errorCount    int
	maxErrorCount int
	backoffFactor float64
	ceiling       time.Duration
	now           func() time.Time
	rand          func(n int64) int64
}

func NewJitterLimiter(minDelay, maxDelay time.Duration) *JitterLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitterLimiter{
		baseMin:       minDelay,
		baseMax:       maxDelay,
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		maxErrorCount: 3,
		backoffFactor: 1.5,
		ceiling:       60 * time.Second,
		now:           time.Now,
		rand:          rand.Int63n,
	}
}

func (l *JitterLimiter) Wait(ctx context.Context) error {
	wait := l.reserve()
	if wait <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// reserve claims the next start slot and returns how long to wait for it.
func (l *JitterLimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := l.next
	if start.Before(now) {
		start = now
	}
	l.next = start.Add(l.delay())

	return start.Sub(now)
}

func (l *JitterLimiter) delay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(l.rand(int64(l.maxDelay-l.minDelay)))
}

func (l *JitterLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errorCount = 0
	l.minDelay = shrink(l.minDelay, l.baseMin)
	l.maxDelay = shrink(l.maxDelay, l.baseMax)
}

func (l *JitterLimiter) RecordError() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errorCount++
	if l.errorCount < l.maxErrorCount {
		return
	}
	l.errorCount = 0

	l.minDelay = l.grow(l.minDelay)
	l.maxDelay = l.grow(l.maxDelay)
}

// Delays returns the current gap bounds.
func (l *JitterLimiter) Delays() (time.Duration, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minDelay, l.maxDelay
}

func (l *JitterLimiter) grow(d time.Duration) time.Duration {
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	d = time.Duration(float64(d) * l.backoffFactor)
	if d > l.ceiling {
		d = l.ceiling
	}
	return d
}

func shrink(d, floor time.Duration) time.Duration {
	d = time.Duration(float64(d) * 0.9)
	if d < floor {
		d = floor
	}
	return d
}
