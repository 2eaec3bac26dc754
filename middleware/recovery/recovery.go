// Package recovery provides middleware for recovering from panics within
// a specific point of the pipeline.
//
// kiln's Container already recovers any panic that escapes the whole
// composed chain (spec.md §4.6 step 6, the mechanism backing "exceptions
// for control flow" from §9) and renders it through the installed error
// handler. This middleware exists for callers who want a narrower,
// request-scoped recovery point instead — one with its own stack-trace
// logging and a custom handler, placed wherever it is registered rather
// than fixed at the pipeline's outermost boundary. Registering it early
// in the chain means panics in everything downstream of it are logged
// and rendered here rather than falling through to the container's
// default JSON error body.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/kiln-dev/kiln"
)

// Option configures the recovery middleware.
type Option func(*config)

type config struct {
	logger     kiln.Logger
	stackTrace bool
	stackSize  int
	handler    func(req *kiln.Request, resp *kiln.Response, recovered any)
}

func defaultConfig() *config {
	return &config{
		stackTrace: true,
		stackSize:  4 << 10,
	}
}

// WithoutLogging disables panic logging, useful in tests to avoid noisy
// output.
func WithoutLogging() Option {
	return func(cfg *config) { cfg.logger = nil }
}

// WithLogger sets the Logger used for panic logging.
func WithLogger(l kiln.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithStackTrace enables or disables stack trace capture (default on).
func WithStackTrace(enabled bool) Option {
	return func(cfg *config) { cfg.stackTrace = enabled }
}

// WithStackSize sets the maximum captured stack trace size in bytes
// (default 4KiB).
func WithStackSize(n int) Option {
	return func(cfg *config) { cfg.stackSize = n }
}

// WithHandler installs a custom responder for the recovered value,
// replacing the default 500 JSON body.
func WithHandler(handler func(req *kiln.Request, resp *kiln.Response, recovered any)) Option {
	return func(cfg *config) { cfg.handler = handler }
}

// New returns recovery middleware. It should typically be registered
// first so it wraps the widest possible portion of the chain.
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			if cfg.logger != nil {
				attrs := []any{"panic", recovered, "request_id", req.ID()}
				if cfg.stackTrace {
					buf := make([]byte, cfg.stackSize)
					n := runtime.Stack(buf, false)
					attrs = append(attrs, "stack", string(buf[:n]))
				}
				cfg.logger.Log(req.Context(), slog.LevelError, "recovered panic", attrs...)
			}

			if cfg.handler != nil {
				cfg.handler(req, resp, recovered)
				return
			}
			_ = resp.JSON(http.StatusInternalServerError, map[string]any{
				"error": "Internal Server Error",
			})
		}()
		next()
	}
}
