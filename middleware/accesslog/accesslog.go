// Package accesslog provides middleware for structured HTTP access
// logging: method, path, status, duration, client IP, user agent, and
// the request's correlation id, with path exclusion and sampling.
//
// kiln.Response already tracks its own status code as handlers run, so
// this middleware reads it back directly rather than wrapping the
// transport-level http.ResponseWriter the way kiln.Server's own
// access-logging hook does (that hook uses
// github.com/felixge/httpsnoop, the only place in kiln that actually
// holds the raw http.ResponseWriter needed to capture wire-level bytes
// written across both buffered and streamed response flavors).
//
// Basic usage:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	c := kiln.New()
//	c.Use(accesslog.New(accesslog.WithLogger(logger)))
//
// Exclude noisy paths and sample the rest:
//
//	c.Use(accesslog.New(
//	    accesslog.WithLogger(logger),
//	    accesslog.WithExcludePaths("/health", "/metrics"),
//	    accesslog.WithSampleRate(0.1),
//	))
package accesslog

import (
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/kiln-dev/kiln"
)

// Option configures the access-log middleware.
type Option func(*config)

type config struct {
	logger       kiln.Logger
	excludePaths map[string]bool
	fields       func(req *kiln.Request, resp *kiln.Response) []any
	sampleRate   float64
	anonymizeIP  bool
	rand         *rand.Rand
}

func defaultConfig() *config {
	return &config{
		excludePaths: make(map[string]bool),
		sampleRate:   1.0,
	}
}

// WithLogger sets the structured logger requests are written to.
// Required: New is a no-op middleware if never called.
func WithLogger(l kiln.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithExcludePaths omits the given exact paths from logging (health
// checks, metrics scrapes).
func WithExcludePaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.excludePaths[p] = true
		}
	}
}

// WithFields attaches additional structured fields (as alternating
// key/value pairs) computed per request.
func WithFields(fn func(req *kiln.Request, resp *kiln.Response) []any) Option {
	return func(cfg *config) { cfg.fields = fn }
}

// WithSampleRate logs only a fraction of requests, in [0,1] (default 1:
// every request). Useful to cut log volume on high-traffic routes.
func WithSampleRate(rate float64) Option {
	return func(cfg *config) { cfg.sampleRate = rate }
}

// WithIPAnonymization zeroes the last octet (IPv4) or last 80 bits
// (IPv6) of the logged client IP, for privacy-sensitive deployments.
func WithIPAnonymization(enabled bool) Option {
	return func(cfg *config) { cfg.anonymizeIP = enabled }
}

// New returns access-log middleware. Requests to excluded paths, and
// requests dropped by sampling, skip logging entirely but still run the
// rest of the chain normally.
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sampleRate < 1 {
		cfg.rand = rand.New(rand.NewSource(1))
	}

	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		if cfg.logger == nil || cfg.excludePaths[req.Path()] {
			next()
			return
		}
		if cfg.rand != nil && cfg.rand.Float64() >= cfg.sampleRate {
			next()
			return
		}

		start := time.Now()
		next()
		duration := time.Since(start)

		clientIP := clientIPFrom(req, cfg.anonymizeIP)

		attrs := []any{
			"method", req.Method(),
			"path", req.Path(),
			"status", resp.StatusCode(),
			"duration", duration,
			"client_ip", clientIP,
			"user_agent", req.Header("User-Agent"),
			"request_id", req.ID(),
		}
		if cfg.fields != nil {
			attrs = append(attrs, cfg.fields(req, resp)...)
		}
		cfg.logger.Log(req.Context(), slog.LevelInfo, "request", attrs...)
	}
}

func clientIPFrom(req *kiln.Request, anonymize bool) string {
	host, _, err := net.SplitHostPort(req.Raw().RemoteAddr)
	if err != nil {
		host = req.Raw().RemoteAddr
	}
	if !anonymize {
		return host
	}
	return anonymizeIP(host)
}

func anonymizeIP(host string) string {
	ip := net.ParseIP(host)
	if ip == nil {
		return host
	}
	if v4 := ip.To4(); v4 != nil {
		v4[3] = 0
		return v4.String()
	}
	masked := ip.Mask(net.CIDRMask(48, 128))
	return masked.String()
}
