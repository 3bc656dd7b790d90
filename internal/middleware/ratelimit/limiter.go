// Package ratelimit provides the optional request throttling stage.
// The in-memory backend keeps a token bucket per client key; the redis
// backend uses a fixed window shared across instances.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/errors"
	"github.com/courier-http/courier/internal/middleware"
	"github.com/courier-http/courier/internal/middleware/privacy"
	"golang.org/x/time/rate"
)

// Backend decides whether a keyed request may proceed.
type Backend interface {
	Allow(r *http.Request, key string) (allowed bool, retryAfter time.Duration)
}

// Limiter is the compiled rate-limit middleware.
type Limiter struct {
	backend Backend
	perIP   bool
	period  time.Duration

	allowed    atomic.Int64
	rejected   atomic.Int64
	onRejected func()
}

// New builds a Limiter from configuration. The redis backend needs a
// live client; pass nil for the memory backend.
func New(cfg config.RateLimitConfig, backend Backend) *Limiter {
	period := cfg.Period
	if period == 0 {
		period = time.Minute
	}
	if backend == nil {
		backend = NewMemoryBackend(cfg)
	}
	return &Limiter{
		backend: backend,
		perIP:   cfg.PerIP,
		period:  period,
	}
}

// Stats returns a snapshot of the limiter's counters.
func (l *Limiter) Stats() (allowed, rejected int64) {
	return l.allowed.Load(), l.rejected.Load()
}

// OnRejection registers a callback invoked once per throttled request.
func (l *Limiter) OnRejection(fn func()) { l.onRejected = fn }

// Middleware returns the chainable throttling stage.
func (l *Limiter) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "global"
			if l.perIP {
				if ip := privacy.ClientIP(r.Context()); ip != "" {
					key = ip
				} else {
					key = r.RemoteAddr
				}
			}

			allowed, retryAfter := l.backend.Allow(r, key)
			if !allowed {
				l.rejected.Add(1)
				if l.onRejected != nil {
					l.onRejected()
				}
				if retryAfter <= 0 {
					retryAfter = l.period
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.5)))
				courierErr := errors.ErrTooManyRequests
				if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
					courierErr = courierErr.WithRequestID(reqID)
				}
				courierErr.WriteJSON(w)
				return
			}

			l.allowed.Add(1)
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryBackend keeps a token bucket per key in a sharded map.
type MemoryBackend struct {
	buckets *shardedMap[*bucket]
	limit   rate.Limit
	burst   int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// NewMemoryBackend builds the in-process token bucket backend and
// starts its idle-entry sweeper.
func NewMemoryBackend(cfg config.RateLimitConfig) *MemoryBackend {
	period := cfg.Period
	if period == 0 {
		period = time.Minute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Rate
	}
	if burst <= 0 {
		burst = 1
	}

	b := &MemoryBackend{
		buckets: newShardedMap[*bucket](),
		limit:   rate.Limit(float64(cfg.Rate) / period.Seconds()),
		burst:   burst,
	}
	go b.sweep(period)
	return b
}

// Allow implements Backend.
func (b *MemoryBackend) Allow(_ *http.Request, key string) (bool, time.Duration) {
	bk := b.buckets.getOrCreate(key, func() *bucket {
		return &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
	})
	bk.lastSeen.Store(time.Now().UnixNano())

	if bk.limiter.Allow() {
		return true, 0
	}
	res := bk.limiter.Reserve()
	delay := res.Delay()
	res.Cancel()
	return false, delay
}

// sweep drops buckets idle for ten periods so one-off clients do not
// accumulate forever.
func (b *MemoryBackend) sweep(period time.Duration) {
	interval := 10 * period
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-interval).UnixNano()
		b.buckets.deleteFunc(func(_ string, bk *bucket) bool {
			return bk.lastSeen.Load() < cutoff
		})
	}
}
