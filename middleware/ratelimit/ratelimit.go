// Package ratelimit provides token-bucket rate-limiting middleware, one
// bucket per key (by default, the request's remote address).
//
// Usage:
//
//	c := kiln.New()
//	c.Use(ratelimit.New(
//	    ratelimit.WithRequestsPerSecond(5),
//	    ratelimit.WithBurst(10),
//	))
//
// Custom keying, e.g. per authenticated user instead of per IP:
//
//	c.Use(ratelimit.New(
//	    ratelimit.WithKeyFunc(func(req *kiln.Request) string {
//	        return req.Header("X-User-Id")
//	    }),
//	))
//
// A key function returning "" exempts that request from limiting.
//
// Token refill is computed by golang.org/x/time/rate from time.Now
// readings, whose differences use Go's monotonic clock, so a backward
// jump of the system wall clock neither refills nor drains a bucket.
package ratelimit

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kiln-dev/kiln"
)

// Option configures the rate-limit middleware.
type Option func(*config)

type config struct {
	rps             rate.Limit
	burst           int
	keyFunc         func(req *kiln.Request) string
	handler         func(req *kiln.Request, resp *kiln.Response)
	logger          kiln.Logger
	cleanupInterval time.Duration
	limiterTTL      time.Duration
}

func defaultConfig() *config {
	return &config{
		rps:             10,
		burst:           10,
		keyFunc:         func(req *kiln.Request) string { return req.Raw().RemoteAddr },
		cleanupInterval: time.Minute,
		limiterTTL:      5 * time.Minute,
	}
}

// WithRequestsPerSecond sets the sustained refill rate (default 10).
func WithRequestsPerSecond(n float64) Option {
	return func(cfg *config) { cfg.rps = rate.Limit(n) }
}

// WithBurst sets the bucket's maximum burst size (default 10).
func WithBurst(n int) Option {
	return func(cfg *config) { cfg.burst = n }
}

// WithKeyFunc overrides how a request is mapped to a bucket key (default:
// RemoteAddr). A key of "" exempts the request from limiting.
func WithKeyFunc(fn func(req *kiln.Request) string) Option {
	return func(cfg *config) { cfg.keyFunc = fn }
}

// WithHandler installs a custom responder for the rate-limited case,
// replacing the default 429 JSON body.
func WithHandler(handler func(req *kiln.Request, resp *kiln.Response)) Option {
	return func(cfg *config) { cfg.handler = handler }
}

// WithLogger enables logging of rate-limit rejections.
func WithLogger(l kiln.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithCleanupInterval sets how often idle per-key limiters are swept
// (default 1 minute).
func WithCleanupInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.cleanupInterval = d }
}

// WithLimiterTTL sets how long a per-key limiter survives without
// activity before the cleanup sweep evicts it (default 5 minutes).
func WithLimiterTTL(d time.Duration) Option {
	return func(cfg *config) { cfg.limiterTTL = d }
}

type bucket struct {
	limiter    *rate.Limiter
	lastSeenAt time.Time
}

// limiterSet is the per-key token-bucket registry backing New.
type limiterSet struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	ttl     time.Duration
}

func newLimiterSet(rps rate.Limit, burst int, ttl time.Duration) *limiterSet {
	return &limiterSet{buckets: make(map[string]*bucket), rps: rps, burst: burst, ttl: ttl}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeenAt = now
	return b.limiter.Allow()
}

func (s *limiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if now.Sub(b.lastSeenAt) > s.ttl {
			delete(s.buckets, key)
		}
	}
}

// New returns rate-limiting middleware backed by one token bucket per
// key, refilled continuously at WithRequestsPerSecond and capped at
// WithBurst. A background goroutine sweeps buckets idle past
// WithLimiterTTL every WithCleanupInterval, so long-lived servers do not
// accumulate one bucket per distinct client forever.
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	set := newLimiterSet(cfg.rps, cfg.burst, cfg.limiterTTL)
	startCleanup(set, cfg.cleanupInterval)

	return buildMiddleware(set, cfg)
}

func buildMiddleware(set *limiterSet, cfg *config) kiln.MiddlewareFunc {
	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		key := cfg.keyFunc(req)
		if key == "" {
			next()
			return
		}

		if !set.allow(key, time.Now()) {
			if cfg.logger != nil {
				cfg.logger.Log(req.Context(), slog.LevelWarn, "rate limit exceeded", "key", key, "request_id", req.ID())
			}
			if cfg.handler != nil {
				cfg.handler(req, resp)
				return
			}
			_ = resp.JSON(http.StatusTooManyRequests, map[string]any{
				"error": "Too Many Requests",
			})
			return
		}
		next()
	}
}

func startCleanup(set *limiterSet, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		for now := range ticker.C {
			set.sweep(now)
		}
	}()
}
