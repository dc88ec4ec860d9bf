// Package ratelimit throttles inbound messages per chat user.
package ratelimit

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	applog "finbot/internal/log"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per user
type Limiter struct {
	mu           sync.Mutex
	users        map[int64]*userEntry
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	// Configuration
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	idleTTL         time.Duration

	rejected atomic.Int64
}

type userEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	MessagesPerMinute int
	Burst             int
	CleanupInterval   time.Duration
	IdleTTL           time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MessagesPerMinute: 30,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.MessagesPerMinute <= 0 {
		config.MessagesPerMinute = def.MessagesPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		users:           make(map[int64]*userEntry),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           rate.Limit(float64(config.MessagesPerMinute) / 60.0),
		burst:           config.Burst,
		cleanupInterval: config.CleanupInterval,
		idleTTL:         config.IdleTTL,
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether a message from uid may be processed now.
func (rl *Limiter) Allow(uid int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.users[uid]
	if !exists {
		entry = &userEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.users[uid] = entry
	}
	entry.lastSeen = now

	if !entry.limiter.AllowN(now, 1) {
		rl.rejected.Add(1)
		return false
	}
	return true
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := rl.cleanupStaleEntries(); n > 0 {
				slog.Debug("Cleaned up idle rate limiters",
					applog.FieldComponent, applog.ComponentRateLimit, applog.FieldRows, n)
			}
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops users not seen for longer than the idle TTL
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for uid, entry := range rl.users {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.users, uid)
			removed++
		}
	}
	return removed
}

// ActiveUsers returns the number of currently tracked users
func (rl *Limiter) ActiveUsers() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.users)
}

// Stop shuts down the cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limiting
type Metrics struct {
	Rejected    int64
	ActiveUsers int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		Rejected:    rl.rejected.Load(),
		ActiveUsers: int64(rl.ActiveUsers()),
	}
}
