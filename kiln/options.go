package kiln

import (
	"time"

	"github.com/kiln-dev/kiln/session"
)

// DefaultCookieName, DefaultRequestTimeout, and DefaultShutdownTimeout are
// the framework defaults named by the specification.
const (
	DefaultCookieName      = "sessionId"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// config holds the options collected by the functional-options
// constructors, following the pattern used throughout the example
// corpus (rivaas.dev/app's Option, rivaas.dev/router's Option).
type config struct {
	logger         Logger
	store          session.Store
	signer         *session.Signer
	cookieName     string
	secureCookie   bool
	maxBodyBytes   int64
	maxFileBytes   int64
	requestTimeout time.Duration
}

func defaultConfig() *config {
	return &config{
		store:          session.NullStore{},
		cookieName:     DefaultCookieName,
		maxBodyBytes:   DefaultMaxBodyBytes,
		maxFileBytes:   DefaultMaxFileBytes,
		requestTimeout: DefaultRequestTimeout,
	}
}

// Option configures a Container at construction time.
type Option func(*config)

// WithLogger installs l as the container's Logger capability. The
// zero value keeps the package's noop logger.
func WithLogger(l Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStore installs the session store. Defaults to session.NullStore{}
// (sessions are minted and signed but never persisted server-side).
func WithStore(store session.Store) Option {
	return func(c *config) { c.store = store }
}

// WithSigner installs the cookie signer. Without one, session ids travel
// unsigned in the cookie.
func WithSigner(signer *session.Signer) Option {
	return func(c *config) { c.signer = signer }
}

// WithCookieName overrides the session cookie name (default "sessionId").
func WithCookieName(name string) Option {
	return func(c *config) { c.cookieName = name }
}

// WithSecureCookie sets the Secure attribute on the session cookie.
func WithSecureCookie(secure bool) Option {
	return func(c *config) { c.secureCookie = secure }
}

// WithMaxBodyBytes overrides the request body size cap.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) { c.maxBodyBytes = n }
}

// WithMaxFileBytes overrides the multipart file size cap.
func WithMaxFileBytes(n int64) Option {
	return func(c *config) { c.maxFileBytes = n }
}

// WithRequestTimeout records a per-request deadline in the container's
// configuration (default 30s). Neither Container nor Server reads it:
// Server takes its deadline only from WithServerRequestTimeout, so this
// option does not change how requests are handled.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) { c.requestTimeout = d }
}
