// Package security provides middleware for setting security-related HTTP
// response headers: Content-Security-Policy, X-Frame-Options, HSTS, and
// related defenses against clickjacking, MIME-sniffing, and protocol
// downgrade.
//
// Basic usage with secure defaults:
//
//	c := kiln.New()
//	c.Use(security.New())
//
// Custom configuration:
//
//	c.Use(security.New(
//	    security.WithFrameOptions("SAMEORIGIN"),
//	    security.WithContentSecurityPolicy("default-src 'self'; script-src 'self' https://cdn.example.com"),
//	))
//
// Disable HSTS (useful in development):
//
//	c.Use(security.New(security.WithHSTS(0, false, false)))
package security

import (
	"fmt"

	"github.com/kiln-dev/kiln"
)

// Option configures the security middleware.
type Option func(*config)

type config struct {
	frameOptions       string
	contentTypeNosniff bool
	xssProtection      string

	hstsMaxAge            int
	hstsIncludeSubdomains bool
	hstsPreload           bool

	contentSecurityPolicy string
	referrerPolicy        string
	permissionsPolicy     string

	customHeaders map[string]string
}

func defaultConfig() *config {
	return &config{
		frameOptions:          "DENY",
		contentTypeNosniff:    true,
		xssProtection:         "1; mode=block",
		hstsMaxAge:            31536000, // 1 year
		hstsIncludeSubdomains: true,
		contentSecurityPolicy: "default-src 'self'",
		referrerPolicy:        "strict-origin-when-cross-origin",
		customHeaders:         make(map[string]string),
	}
}

// WithFrameOptions sets X-Frame-Options. Common values: "DENY",
// "SAMEORIGIN". Default: "DENY".
func WithFrameOptions(value string) Option {
	return func(cfg *config) { cfg.frameOptions = value }
}

// WithContentTypeNosniff enables or disables X-Content-Type-Options:
// nosniff. Default: true.
func WithContentTypeNosniff(enabled bool) Option {
	return func(cfg *config) { cfg.contentTypeNosniff = enabled }
}

// WithXSSProtection sets X-XSS-Protection. Default: "1; mode=block".
func WithXSSProtection(value string) Option {
	return func(cfg *config) { cfg.xssProtection = value }
}

// WithHSTS configures Strict-Transport-Security. maxAge is in seconds;
// maxAge <= 0 disables the header entirely.
func WithHSTS(maxAge int, includeSubdomains, preload bool) Option {
	return func(cfg *config) {
		cfg.hstsMaxAge = maxAge
		cfg.hstsIncludeSubdomains = includeSubdomains
		cfg.hstsPreload = preload
	}
}

// WithContentSecurityPolicy sets Content-Security-Policy. Default:
// "default-src 'self'".
func WithContentSecurityPolicy(policy string) Option {
	return func(cfg *config) { cfg.contentSecurityPolicy = policy }
}

// WithReferrerPolicy sets Referrer-Policy. Default:
// "strict-origin-when-cross-origin".
func WithReferrerPolicy(policy string) Option {
	return func(cfg *config) { cfg.referrerPolicy = policy }
}

// WithPermissionsPolicy sets Permissions-Policy, restricting which
// browser features and APIs the page may use.
func WithPermissionsPolicy(policy string) Option {
	return func(cfg *config) { cfg.permissionsPolicy = policy }
}

// WithCustomHeader adds an additional header to every response.
func WithCustomHeader(name, value string) Option {
	return func(cfg *config) { cfg.customHeaders[name] = value }
}

// NoSecurityHeaders disables every header this middleware would
// otherwise set, useful when headers are already applied by an upstream
// proxy or gateway.
func NoSecurityHeaders() Option {
	return func(cfg *config) {
		*cfg = config{customHeaders: make(map[string]string)}
	}
}

// DevelopmentPreset relaxes CSP to allow inline scripts/styles and
// disables HSTS, so the same server can be reached over plain HTTP
// during local development.
func DevelopmentPreset() Option {
	return func(cfg *config) {
		cfg.frameOptions = "SAMEORIGIN"
		cfg.contentTypeNosniff = true
		cfg.xssProtection = "1; mode=block"
		cfg.contentSecurityPolicy = "default-src 'self' 'unsafe-inline' 'unsafe-eval'; img-src 'self' data:;"
		cfg.referrerPolicy = "no-referrer-when-downgrade"
		cfg.hstsMaxAge = 0
		cfg.hstsIncludeSubdomains = false
		cfg.hstsPreload = false
	}
}

// ProductionPreset enables every recommended header with strict
// policies, including a locked-down Permissions-Policy.
func ProductionPreset() Option {
	return func(cfg *config) {
		cfg.frameOptions = "DENY"
		cfg.contentTypeNosniff = true
		cfg.xssProtection = "1; mode=block"
		cfg.hstsMaxAge = 31536000
		cfg.hstsIncludeSubdomains = true
		cfg.hstsPreload = true
		cfg.contentSecurityPolicy = "default-src 'self'"
		cfg.referrerPolicy = "strict-origin-when-cross-origin"
		cfg.permissionsPolicy = "geolocation=(), microphone=(), camera=()"
	}
}

// New returns middleware that sets security headers on every response,
// except Strict-Transport-Security, which is set only on requests that
// arrived over TLS.
func New(opts ...Option) kiln.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var hstsHeader string
	if cfg.hstsMaxAge > 0 {
		hstsHeader = fmt.Sprintf("max-age=%d", cfg.hstsMaxAge)
		if cfg.hstsIncludeSubdomains {
			hstsHeader += "; includeSubDomains"
		}
		if cfg.hstsPreload {
			hstsHeader += "; preload"
		}
	}

	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		h := resp.Header()

		if cfg.frameOptions != "" {
			h.Set("X-Frame-Options", cfg.frameOptions)
		}
		if cfg.contentTypeNosniff {
			h.Set("X-Content-Type-Options", "nosniff")
		}
		if cfg.xssProtection != "" {
			h.Set("X-XSS-Protection", cfg.xssProtection)
		}
		if hstsHeader != "" && req.Raw().TLS != nil {
			h.Set("Strict-Transport-Security", hstsHeader)
		}
		if cfg.contentSecurityPolicy != "" {
			h.Set("Content-Security-Policy", cfg.contentSecurityPolicy)
		}
		if cfg.referrerPolicy != "" {
			h.Set("Referrer-Policy", cfg.referrerPolicy)
		}
		if cfg.permissionsPolicy != "" {
			h.Set("Permissions-Policy", cfg.permissionsPolicy)
		}
		for name, value := range cfg.customHeaders {
			h.Set(name, value)
		}

		next()
	}
}
