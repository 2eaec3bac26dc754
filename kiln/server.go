package kiln

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixge/httpsnoop"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kiln-dev/kiln/kerrors"
)

// serverConfig holds Server's functional-options state, kept separate
// from Container's config since the two constructors compose
// independently (a Container can serve without ever going through a
// Server, e.g. in tests via httptest).
type serverConfig struct {
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	drainGrace      time.Duration
	pollInterval    time.Duration
	useH2C          bool
	logger          Logger
}

func defaultServerConfig() *serverConfig {
	return &serverConfig{
		requestTimeout:  DefaultRequestTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		drainGrace:      100 * time.Millisecond,
		pollInterval:    10 * time.Millisecond,
	}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*serverConfig)

// WithServerRequestTimeout overrides the per-request deadline (default 30s).
func WithServerRequestTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.requestTimeout = d }
}

// WithShutdownTimeout overrides how long Shutdown waits for active
// requests to drain before forcing the listener closed (default 30s).
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.shutdownTimeout = d }
}

// WithH2C enables cleartext HTTP/2 (prior-knowledge and Upgrade
// negotiation) via golang.org/x/net/http2/h2c, additive to the HTTP/1.1
// transport spec.md §6 names as the baseline.
func WithH2C(enabled bool) ServerOption {
	return func(c *serverConfig) { c.useH2C = enabled }
}

// WithServerLogger installs the Logger that receives one access-log line
// per request (status, bytes, and duration captured via httpsnoop) and
// reports panics that escape container dispatch.
func WithServerLogger(l Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// Server wraps a Container with the lifecycle behavior spec.md §4.7
// describes: concurrent per-request scheduling, atomic active-request
// accounting, a hard per-request deadline enforced via timeoutWriter,
// and draining shutdown.
type Server struct {
	container *Container
	cfg       *serverConfig

	httpServer *http.Server
	listener   net.Listener

	active   int64 // atomic
	draining int32 // atomic bool
}

// NewServer wraps container for standalone serving.
func NewServer(container *Container, opts ...ServerOption) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Server{container: container, cfg: cfg}
}

// ActiveRequests returns the number of requests currently in flight, for
// health-check exposure.
func (s *Server) ActiveRequests() int64 {
	return atomic.LoadInt64(&s.active)
}

// Addr returns the address the listener bound to (useful after
// ListenAndServe(":0") for tests), or "" before Listen has run.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe binds addr and serves until the listener is closed by
// Shutdown (or fails for another reason). Pass ":0" to bind an ephemeral
// port, then read it back via Addr.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the server over an already-bound listener.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	var handler http.Handler = http.HandlerFunc(s.serveOne)
	if s.cfg.useH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	s.httpServer = &http.Server{Handler: handler}
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// serveOne is the per-connection entry point: draining rejection,
// active-request accounting, and the per-request deadline wrap the
// Container's own 8-step dispatch.
func (s *Server) serveOne(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.draining) == 1 {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Server is shutting down"))
		return
	}

	atomic.AddInt64(&s.active, 1)
	defer atomic.AddInt64(&s.active, -1)

	if s.cfg.logger == nil {
		s.serveWithDeadline(w, r)
		return
	}

	metrics := httpsnoop.CaptureMetrics(http.HandlerFunc(s.serveWithDeadline), w, r)
	s.cfg.logger.Log(r.Context(), slog.LevelInfo, "request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", metrics.Code,
		"bytes", metrics.Written,
		"duration", metrics.Duration,
	)
}

func (s *Server) serveWithDeadline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	tw := newTimeoutWriter()
	done := make(chan struct{})
	panicCh := make(chan any, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				panicCh <- p
				return
			}
			close(done)
		}()
		s.container.ServeHTTP(tw, r)
	}()

	select {
	case <-done:
		tw.flushTo(w)
	case p := <-panicCh:
		logError(s.cfg.logger, r.Context(), "panic escaped container dispatch", "panic", p)
		tw.flushTo(w)
	case <-ctx.Done():
		select {
		case <-done:
			// The handler goroutine had already finished writing
			// (both branches fired near-simultaneously); prefer its
			// output rather than an empty timeout body.
			tw.flushTo(w)
			return
		default:
		}
		tw.markTimedOut()
		status, payload := kerrors.Format(kerrors.TimeoutErr("request timeout"))
		body, _ := json.Marshal(payload)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

// Shutdown transitions the server to draining (new requests get 503),
// waits for in-flight requests to reach zero or shutdownTimeout to
// elapse, then forcibly closes the listener and disposes the session
// store and DI container.
func (s *Server) Shutdown(ctx context.Context) error {
	atomic.StoreInt32(&s.draining, 1)

	deadline := time.Now().Add(s.cfg.shutdownTimeout)
	ticker := time.NewTicker(s.cfg.pollInterval)
	defer ticker.Stop()

waitLoop:
	for atomic.LoadInt64(&s.active) > 0 {
		select {
		case <-ticker.C:
			if time.Now().After(deadline) {
				break waitLoop
			}
		case <-ctx.Done():
			break waitLoop
		}
	}

	time.Sleep(s.cfg.drainGrace)

	var closeErr error
	if s.httpServer != nil {
		closeErr = s.httpServer.Close()
	}

	s.container.store.Dispose()
	s.container.di.Dispose()

	return closeErr
}
