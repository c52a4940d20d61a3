// Package ratelimit implements token-bucket admission control keyed by
// caller identity. Refill is lazy (computed on access from elapsed
// time), so there is no per-key timer; a single background sweep
// bounds memory by evicting long-idle keys.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultUserLimit is the per-account metadata-fetch budget.
	DefaultUserLimit = 30
	// DefaultIPLimit is the per-source-address budget.
	DefaultIPLimit = 60
	// DefaultWindow is the refill window for both budgets.
	DefaultWindow = time.Minute

	sweepInterval  = 5 * time.Minute
	staleThreshold = time.Hour
)

// Clock abstracts time for deterministic refill tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock Clock used in production.
func SystemClock() Clock { return systemClock{} }

type entry struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a process-wide token-bucket limiter. All methods are safe
// for concurrent use; a single mutex guards the key map, which also
// keeps the sweep from racing an in-flight admit.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   Clock
	logger  *zap.Logger
	done    chan struct{}
	swept   chan struct{}
	started atomic.Bool
}

// NewLimiter creates a Limiter. A nil clock falls back to the system
// clock. The sweeper is not started; call StartSweeper for long-lived
// limiters.
func NewLimiter(clock Clock, logger *zap.Logger) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &Limiter{
		entries: make(map[string]*entry),
		clock:   clock,
		logger:  logger,
		done:    make(chan struct{}),
		swept:   make(chan struct{}),
	}
}

// Allow reports whether one request for key is admitted under the given
// budget, consuming a token on admission.
//
// First sight of a key seeds the bucket at limit-1 and admits. On later
// calls, floor(elapsed * limit / window) tokens are refilled, capped at
// limit. The refill timestamp only advances when tokens were actually
// added; a denied call under starvation leaves the entry untouched so
// fractional-token progress is never lost to rapid retries.
func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &entry{
			tokens:     float64(limit - 1),
			lastRefill: now,
		}
		return true
	}

	elapsed := now.Sub(e.lastRefill)
	if elapsed < 0 {
		// Clock went backwards; never refill negatively.
		elapsed = 0
	}
	refillRate := float64(limit) / float64(window.Milliseconds())
	tokensToAdd := float64(int64(float64(elapsed.Milliseconds()) * refillRate))

	newTokens := e.tokens + tokensToAdd
	if newTokens > float64(limit) {
		newTokens = float64(limit)
	}

	if newTokens >= 1 {
		e.tokens = newTokens - 1
		if tokensToAdd > 0 {
			e.lastRefill = now
		}
		return true
	}

	return false
}

// StartSweeper launches the background goroutine that evicts entries
// idle for over an hour. Call Close to stop it.
func (l *Limiter) StartSweeper() {
	l.started.Store(true)
	go func() {
		defer close(l.swept)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.done:
				return
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit. A no-op when
// StartSweeper was never called. Safe to call once.
func (l *Limiter) Close() {
	if !l.started.Load() {
		return
	}
	close(l.done)
	<-l.swept
}

func (l *Limiter) sweep() {
	now := l.clock.Now()

	l.mu.Lock()
	evicted := 0
	for key, e := range l.entries {
		if now.Sub(e.lastRefill) > staleThreshold {
			delete(l.entries, key)
			evicted++
		}
	}
	remaining := len(l.entries)
	l.mu.Unlock()

	if evicted > 0 {
		l.logger.Debug("rate limiter sweep",
			zap.Int("evicted", evicted),
			zap.Int("remaining", remaining),
		)
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// UserKey namespaces an account identity for the per-account budget.
func UserKey(accountID string) string { return "user:" + accountID }

// IPKey namespaces a source address for the per-address budget.
func IPKey(ip string) string { return "ip:" + ip }
