package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces per-minute and per-hour request limits with two
// sliding windows. Acquire blocks until a slot is free under both
// windows; it never fails except on context cancellation.
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int

	minuteRequests []time.Time
	hourRequests   []time.Time
	mu             sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
}

// DefaultRateLimiterConfig returns default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
	}
}

// NewRateLimiter creates a new dual-window rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRateLimiterConfig().RequestsPerMinute
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = DefaultRateLimiterConfig().RequestsPerHour
	}
	return &RateLimiter{
		requestsPerMinute: cfg.RequestsPerMinute,
		requestsPerHour:   cfg.RequestsPerHour,
		now:               time.Now,
		sleep:             sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until a request slot is available under both windows,
// then records the request. Cancellation interrupts the sleep.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.prune(now)

		wait := r.waitTime(now)
		if wait <= 0 {
			r.minuteRequests = append(r.minuteRequests, now)
			r.hourRequests = append(r.hourRequests, now)
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)
	if r.waitTime(now) > 0 {
		return false
	}
	r.minuteRequests = append(r.minuteRequests, now)
	r.hourRequests = append(r.hourRequests, now)
	return true
}

// WindowCounts returns the number of requests recorded within the last
// minute and the last hour.
func (r *RateLimiter) WindowCounts() (minute, hour int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	return len(r.minuteRequests), len(r.hourRequests)
}

// waitTime returns how long the caller must wait before a slot frees up
// under both windows, or 0 when a slot is available now. Callers must
// hold the lock and have pruned stale entries.
func (r *RateLimiter) waitTime(now time.Time) time.Duration {
	var wait time.Duration
	if len(r.minuteRequests) >= r.requestsPerMinute {
		if d := time.Minute - now.Sub(r.minuteRequests[0]); d > wait {
			wait = d
		}
	}
	if len(r.hourRequests) >= r.requestsPerHour {
		if d := time.Hour - now.Sub(r.hourRequests[0]); d > wait {
			wait = d
		}
	}
	return wait
}

// prune drops entries older than the window sizes.
func (r *RateLimiter) prune(now time.Time) {
	r.minuteRequests = pruneBefore(r.minuteRequests, now.Add(-time.Minute))
	r.hourRequests = pruneBefore(r.hourRequests, now.Add(-time.Hour))
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && !times[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return times
	}
	return append(times[:0], times[idx:]...)
}
