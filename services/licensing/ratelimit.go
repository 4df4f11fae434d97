package licensing

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimited = promauto.NewCounter(prometheus.CounterOpts{Name: "licensing_rate_limited_total"})

type windowEntry struct {
	windowStart time.Time
	count       int
}

// RateLimiter is an in-process sliding-window counter. State lives only in
// memory: a restart resets all windows, which is acceptable for abuse
// mitigation but never for billing.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	window  time.Duration
	max     int

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewRateLimiter(window time.Duration, max int, sweepEvery time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 100
	}
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	return &RateLimiter{
		entries:    make(map[string]*windowEntry),
		window:     window,
		max:        max,
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
	}
}

// CheckAndIncrement counts one request against key. The increment and the
// limit check happen under one lock so concurrent callers cannot both slip
// under the limit.
func (rl *RateLimiter) CheckAndIncrement(key string) (allowed bool, retryAfter time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok || now.Sub(entry.windowStart) >= rl.window {
		entry = &windowEntry{windowStart: now}
		rl.entries[key] = entry
	}

	entry.count++
	if entry.count > rl.max {
		rateLimited.Inc()
		remaining := rl.window - now.Sub(entry.windowStart)
		if remaining < time.Second {
			remaining = time.Second
		}
		return false, remaining
	}

	return true, 0
}

// Stats describes the limiter's table for observability endpoints.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ActiveEntries  int `json:"active_entries"`
	ExpiredEntries int `json:"expired_entries"`
}

func (rl *RateLimiter) Stats() Stats {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	s := Stats{TotalEntries: len(rl.entries)}
	for _, entry := range rl.entries {
		if now.Sub(entry.windowStart) >= rl.window {
			s.ExpiredEntries++
		} else {
			s.ActiveEntries++
		}
	}
	return s
}

// Clear drops every window. Test isolation only.
func (rl *RateLimiter) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = make(map[string]*windowEntry)
}

// StartSweep launches the background purge that keeps churned keys (many
// distinct source IPs) from growing the table without bound.
func (rl *RateLimiter) StartSweep() {
	go func() {
		ticker := time.NewTicker(rl.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.sweep()
			case <-rl.stop:
				return
			}
		}
	}()
}

func (rl *RateLimiter) StopSweep() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.entries {
		if now.Sub(entry.windowStart) >= rl.window {
			delete(rl.entries, key)
		}
	}
}
