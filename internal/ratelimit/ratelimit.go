// Package ratelimit enforces a fixed request window per teacher.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

const (
	// DefaultLimit is the number of requests allowed per window.
	DefaultLimit = 60
	// DefaultWindow is the window length.
	DefaultWindow = time.Minute
	maxTeachers   = 10_000
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows. Idle windows are evicted
// by the cache TTL.
type Limiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows otter.Cache[string, *window]
}

// New creates a limiter allowing limit requests per period.
func New(limit int, period time.Duration) (*Limiter, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultWindow
	}
	cache, err := otter.MustBuilder[string, *window](maxTeachers).
		WithTTL(period).
		Build()
	if err != nil {
		return nil, err
	}
	return &Limiter{limit: limit, period: period, now: time.Now, windows: cache}, nil
}

// Allow records a request for key. When the key is over its limit it returns
// false and the whole seconds until the window resets.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || now.After(w.resetAt) {
		l.windows.Set(key, &window{count: 1, resetAt: now.Add(l.period)})
		return true, 0
	}
	if w.count >= l.limit {
		return false, int(math.Ceil(w.resetAt.Sub(now).Seconds()))
	}
	w.count++
	return true, 0
}
