// Package bodylimit provides middleware for limiting the size of HTTP
// request bodies, protecting handlers against oversized-payload abuse.
//
// kiln's Container already enforces a body cap on every request (the
// maxBodyBytes passed to kiln.New via WithMaxBodyBytes, applied inside
// Request.Body/DecodeForm/Multipart). This middleware exists for a
// narrower need: a smaller, per-route cap than the container-wide
// default, or an exemption for specific paths (e.g. a file-upload
// endpoint that needs the full container default while everything else
// gets a tighter limit). It works by tightening the request's own cap
// via Request.SetMaxBodyBytes before the body is ever read, so the
// existing read path in kiln.Request does the actual enforcement and
// rejects the request with the same PayloadTooLarge error it always
// would.
//
// Usage:
//
//	c := kiln.New()
//	c.Use(bodylimit.New(bodylimit.WithMaxSize(1 << 20)))
package bodylimit

import (
	"strings"

	"github.com/kiln-dev/kiln"
	"github.com/kiln-dev/kiln/kerrors"
)

// Option configures the body-limit middleware.
type Option func(*config)

type config struct {
	maxSize      int64
	skipPaths    []string
	errorHandler func(req *kiln.Request, resp *kiln.Response)
}

// WithMaxSize sets the maximum request body size in bytes. Required:
// New panics if it is never set or set to zero or less.
func WithMaxSize(n int64) Option {
	return func(cfg *config) { cfg.maxSize = n }
}

// WithSkipPaths excludes the given request paths from the limit (e.g. an
// upload endpoint that already enforces its own, larger cap).
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) { cfg.skipPaths = paths }
}

// WithErrorHandler installs a custom responder for the oversized-body
// case, replacing the default 413 JSON body.
func WithErrorHandler(handler func(req *kiln.Request, resp *kiln.Response)) Option {
	return func(cfg *config) { cfg.errorHandler = handler }
}

// New returns body-limit middleware. MaxSize is required; New panics if
// it was never configured.
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxSize <= 0 {
		panic("bodylimit: MaxSize must be set to a positive value")
	}

	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		for _, skip := range cfg.skipPaths {
			if req.Path() == skip {
				next()
				return
			}
		}

		if cl := req.Header("Content-Length"); cl != "" {
			if n, ok := parseContentLength(cl); ok && n > cfg.maxSize {
				reject(cfg, req, resp)
				return
			}
		}

		req.SetMaxBodyBytes(cfg.maxSize)
		next()
	}
}

func reject(cfg *config, req *kiln.Request, resp *kiln.Response) {
	if cfg.errorHandler != nil {
		cfg.errorHandler(req, resp)
		return
	}
	status, payload := kerrors.Format(kerrors.PayloadTooLargeErr("Payload Too Large").WithData(map[string]any{
		"limitBytes": cfg.maxSize,
	}))
	_ = resp.JSON(status, payload)
}

func parseContentLength(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}
