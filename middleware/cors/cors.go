// Package cors provides middleware for Cross-Origin Resource Sharing,
// handling preflight and non-preflight requests: echoed-origin or
// wildcard Access-Control-Allow-Origin, mirrored preflight headers, and
// a construction-time rejection of wildcard origin combined with
// credentials.
//
// This package only ever sets Access-Control-* and Vary headers. The
// general security headers (Strict-Transport-Security,
// X-Content-Type-Options, X-Frame-Options, Content-Security-Policy, and
// related) live in middleware/security instead, as a separate
// middleware composed alongside this one.
//
// Basic usage:
//
//	c := kiln.New()
//	c.Use(cors.New(
//	    cors.WithAllowedOrigins("https://example.com"),
//	    cors.WithAllowedMethods("GET", "POST"),
//	    cors.WithAllowCredentials(true),
//	))
package cors

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kiln-dev/kiln"
)

// Option configures the CORS middleware.
type Option func(*config)

type config struct {
	allowedOrigins   []string
	allowAllOrigins  bool
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
	allowOriginFunc  func(origin string) bool
}

func defaultConfig() *config {
	return &config{
		allowAllOrigins: true,
		allowedMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		allowedHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:          3600,
	}
}

// WithAllowedOrigins sets specific allowed origins, disabling the
// wildcard default.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *config) {
		cfg.allowedOrigins = origins
		cfg.allowAllOrigins = false
	}
}

// WithAllowedMethods overrides the allowed HTTP methods list.
func WithAllowedMethods(methods ...string) Option {
	return func(cfg *config) { cfg.allowedMethods = methods }
}

// WithAllowedHeaders overrides the allowed request headers list.
func WithAllowedHeaders(headers ...string) Option {
	return func(cfg *config) { cfg.allowedHeaders = headers }
}

// WithExposedHeaders sets response headers exposed to client-side script.
func WithExposedHeaders(headers ...string) Option {
	return func(cfg *config) { cfg.exposedHeaders = headers }
}

// WithAllowCredentials enables credentialed requests. Combining this with
// a wildcard origin is a configuration error: New panics, matching the
// specification's "rejected at construction" rule rather than silently
// producing an insecure header combination at request time.
func WithAllowCredentials(allow bool) Option {
	return func(cfg *config) { cfg.allowCredentials = allow }
}

// WithMaxAge sets the preflight cache duration in seconds.
func WithMaxAge(seconds int) Option {
	return func(cfg *config) { cfg.maxAge = seconds }
}

// WithAllowOriginFunc installs a dynamic origin predicate, checked after
// the static allow-list.
func WithAllowOriginFunc(fn func(origin string) bool) Option {
	return func(cfg *config) { cfg.allowOriginFunc = fn }
}

// New returns CORS middleware. It panics at construction if
// allowAllOrigins (the default) is combined with AllowCredentials(true),
// per spec.md §6's "wildcard origin combined with allowCredentials=true
// is rejected at construction".
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.allowAllOrigins && cfg.allowCredentials {
		panic("cors: wildcard origin cannot be combined with AllowCredentials(true)")
	}

	allowedMethods := strings.Join(cfg.allowedMethods, ", ")
	allowedHeaders := strings.Join(cfg.allowedHeaders, ", ")
	exposedHeaders := strings.Join(cfg.exposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.maxAge)

	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		origin := req.Header("Origin")
		if origin == "" {
			next()
			return
		}

		if !cfg.originAllowed(origin) {
			next()
			return
		}

		isPreflight := req.Method() == http.MethodOptions && req.Header("Access-Control-Request-Method") != ""

		resp.Header().Add("Vary", "Origin")
		if cfg.allowAllOrigins && !cfg.allowCredentials {
			resp.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			resp.Header().Set("Access-Control-Allow-Origin", origin)
		}
		if cfg.allowCredentials {
			resp.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if isPreflight {
			resp.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			if reqHeaders := req.Header("Access-Control-Request-Headers"); reqHeaders != "" {
				resp.Header().Set("Access-Control-Allow-Headers", reqHeaders)
			} else if allowedHeaders != "" {
				resp.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			}
			if maxAge != "" {
				resp.Header().Set("Access-Control-Max-Age", maxAge)
			}
			_ = resp.Text(http.StatusNoContent, "")
			return
		}

		if exposedHeaders != "" {
			resp.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
		}
		next()
	}
}

func (cfg *config) originAllowed(origin string) bool {
	if cfg.allowAllOrigins {
		return true
	}
	for _, allowed := range cfg.allowedOrigins {
		if allowed == origin {
			return true
		}
	}
	if cfg.allowOriginFunc != nil {
		return cfg.allowOriginFunc(origin)
	}
	return false
}
