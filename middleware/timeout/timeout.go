// Package timeout provides middleware for enforcing a per-route request
// deadline, distinct from the server-wide deadline kiln.Server already
// installs on every request (kiln.WithServerRequestTimeout). Registering
// this middleware on a route or group gives that subset of routes its
// own, typically shorter, deadline without changing the server default
// that everything else runs under.
//
// Basic usage:
//
//	c := kiln.New()
//	c.Use(timeout.New(timeout.WithDuration(5 * time.Second)))
//
// Skip specific paths (e.g. a long-lived streaming endpoint):
//
//	c.Use(timeout.New(
//	    timeout.WithDuration(5 * time.Second),
//	    timeout.WithSkipPaths("/stream", "/webhook"),
//	))
//
// Handlers that want to react to the deadline should watch
// req.Context().Done(), the same context.Context the server-level
// deadline cancels.
package timeout

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kiln-dev/kiln"
)

// DefaultDuration is applied when WithDuration is never called.
const DefaultDuration = 30 * time.Second

// Option configures the timeout middleware.
type Option func(*config)

type config struct {
	duration   time.Duration
	logger     kiln.Logger
	handler    func(req *kiln.Request, resp *kiln.Response, d time.Duration)
	skipPaths  []string
	skipPrefix []string
	skipSuffix []string
	skip       func(req *kiln.Request) bool
}

func defaultConfig() *config {
	return &config{duration: DefaultDuration}
}

// WithDuration sets the per-route deadline (default 30s).
func WithDuration(d time.Duration) Option {
	return func(cfg *config) { cfg.duration = d }
}

// WithLogger enables logging of timeout events.
func WithLogger(l kiln.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithoutLogging disables timeout-event logging (the default, absent a
// WithLogger call).
func WithoutLogging() Option {
	return func(cfg *config) { cfg.logger = nil }
}

// WithHandler installs a custom responder for the timeout case,
// replacing the default 408 JSON body.
func WithHandler(handler func(req *kiln.Request, resp *kiln.Response, d time.Duration)) Option {
	return func(cfg *config) { cfg.handler = handler }
}

// WithSkipPaths excludes exact paths from the deadline.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) { cfg.skipPaths = paths }
}

// WithSkipPrefix excludes paths matching any of the given prefixes.
func WithSkipPrefix(prefixes ...string) Option {
	return func(cfg *config) { cfg.skipPrefix = prefixes }
}

// WithSkipSuffix excludes paths matching any of the given suffixes.
func WithSkipSuffix(suffixes ...string) Option {
	return func(cfg *config) { cfg.skipSuffix = suffixes }
}

// WithSkip installs an arbitrary predicate; a true return skips the
// deadline for that request.
func WithSkip(fn func(req *kiln.Request) bool) Option {
	return func(cfg *config) { cfg.skip = fn }
}

func (cfg *config) shouldSkip(req *kiln.Request) bool {
	path := req.Path()
	for _, p := range cfg.skipPaths {
		if path == p {
			return true
		}
	}
	for _, p := range cfg.skipPrefix {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	for _, s := range cfg.skipSuffix {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	if cfg.skip != nil {
		return cfg.skip(req)
	}
	return false
}

// New returns deadline-enforcing middleware. It installs a
// context.WithTimeout deadline on the request's context and calls the
// rest of the chain inline (kiln's Request/Response are not safe for
// concurrent use, so this never runs the handler in a separate
// goroutine the way the absolute per-request deadline in kiln.Server
// does against a buffering writer). A well-behaved handler observes
// ctx.Done() and returns early; either way, once the chain returns, New
// writes the 408 response itself if the deadline was exceeded and the
// chain configured no body (Response.IsConfigured is false).
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		if cfg.shouldSkip(req) {
			next()
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), cfg.duration)
		defer cancel()
		req.SetContext(ctx)

		next()

		if ctx.Err() != context.DeadlineExceeded || resp.IsConfigured() {
			return
		}

		if cfg.logger != nil {
			cfg.logger.Log(req.Context(), slog.LevelWarn, "request timeout", "duration", cfg.duration, "path", req.Path(), "request_id", req.ID())
		}
		if cfg.handler != nil {
			cfg.handler(req, resp, cfg.duration)
			return
		}
		_ = resp.JSON(http.StatusRequestTimeout, map[string]any{
			"error":   "Request Timeout",
			"timeout": cfg.duration.String(),
		})
	}
}
