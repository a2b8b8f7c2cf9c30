package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter in-memory реализация rate limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *Config
	stopCh  chan struct{}
	closed  bool
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
	requests  []time.Time // для sliding window
}

// NewMemoryLimiter создаёт in-memory rate limiter
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}

	go l.cleanup()

	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *MemoryLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrLimiterClosed
	}

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:    float64(l.config.Requests + l.config.BurstSize),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	if l.config.Strategy == StrategyTokenBucket {
		return l.allowTokenBucket(b, n, now), nil
	}
	return l.allowSlidingWindow(b, n, now), nil
}

func (l *MemoryLimiter) allowTokenBucket(b *bucket, n int, now time.Time) bool {
	l.refill(b, now)

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

func (l *MemoryLimiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastCheck)
	b.lastCheck = now

	rate := float64(l.config.Requests) / l.config.Window.Seconds()
	b.tokens = min(b.tokens+elapsed.Seconds()*rate, float64(l.config.Requests+l.config.BurstSize))
}

func (l *MemoryLimiter) allowSlidingWindow(b *bucket, n int, now time.Time) bool {
	b.requests = pruneBefore(b.requests, now.Add(-l.config.Window))
	b.lastCheck = now

	if len(b.requests)+n > l.config.Requests {
		return false
	}
	for range n {
		b.requests = append(b.requests, now)
	}
	return true
}

// pruneBefore оставляет отметки позже start, срез упорядочен по времени
func pruneBefore(requests []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(start) {
		i++
	}
	return requests[i:]
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

func (l *MemoryLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	info := &LimitInfo{
		Limit:     l.config.Requests,
		Remaining: l.config.Requests,
		ResetAt:   now.Add(l.config.Window),
	}

	b, ok := l.buckets[key]
	if !ok {
		return info, nil
	}

	if l.config.Strategy == StrategyTokenBucket {
		l.refill(b, now)
		info.Remaining = int(b.tokens)
		if info.Remaining < 1 {
			rate := float64(l.config.Requests) / l.config.Window.Seconds()
			info.RetryAfter = time.Duration((1 - b.tokens) / rate * float64(time.Second))
		}
		return info, nil
	}

	b.requests = pruneBefore(b.requests, now.Add(-l.config.Window))
	info.Remaining = max(l.config.Requests-len(b.requests), 0)
	if len(b.requests) > 0 {
		info.ResetAt = b.requests[0].Add(l.config.Window)
		if info.Remaining == 0 {
			info.RetryAfter = info.ResetAt.Sub(now)
		}
	}
	return info, nil
}

func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.stopCh)
	l.buckets = nil

	return nil
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.doCleanup()
		}
	}
}

func (l *MemoryLimiter) doCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Храним 2x window
	windowStart := time.Now().Add(-l.config.Window * 2)

	for key, b := range l.buckets {
		b.requests = pruneBefore(b.requests, windowStart)
		if len(b.requests) == 0 && b.lastCheck.Before(windowStart) {
			delete(l.buckets, key)
		}
	}
}
