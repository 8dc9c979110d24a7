// Package ratelimit throttles public auth routes with one token bucket per client
package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBurst           = 10
	DefaultPerSecond       = 5.0
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// Config configures the limiter
type Config struct {
	// PerSecond is the sustained refill rate. Zero or negative uses DefaultPerSecond.
	PerSecond float64
	// Burst is the bucket size. Zero or negative uses DefaultBurst.
	Burst int
	// TTL evicts buckets of clients idle for longer than this
	TTL time.Duration
	// KeyGenerator identifies the client, defaults to c.IP()
	KeyGenerator func(c *fiber.Ctx) string
	// LimitReached handles rejected requests, defaults to 429 with fiber.ErrTooManyRequests
	LimitReached fiber.Handler
	// Now is the clock used for bucket bookkeeping
	Now func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter holds the per client buckets
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a Limiter with defaults applied
func NewLimiter(config ...Config) *Limiter {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = func(c *fiber.Ctx) string {
			return c.IP()
		}
	}
	if cfg.LimitReached == nil {
		cfg.LimitReached = func(c *fiber.Ctx) error {
			return fiber.ErrTooManyRequests
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}
}

// New returns the middleware for a fresh Limiter
func New(config ...Config) fiber.Handler {
	return NewLimiter(config...).Handler()
}

// Handler returns the fiber middleware
func (l *Limiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := l.cfg.KeyGenerator(c)
		if key == "" {
			key = "unknown"
		}

		if !l.Allow(key) {
			return l.cfg.LimitReached(c)
		}
		return c.Next()
	}
}

// Allow consumes one token for key
func (l *Limiter) Allow(key string) bool {
	now := l.cfg.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// Sweep drops buckets that have been idle longer than TTL and returns how many were removed
func (l *Limiter) Sweep() int {
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.seen) > l.cfg.TTL {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// StartCleanup sweeps idle buckets every interval until the returned stop
// function is called
func (l *Limiter) StartCleanup(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
