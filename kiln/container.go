package kiln

import (
	"net/http"
	"strings"
	"sync"

	"github.com/kiln-dev/kiln/kerrors"
	"github.com/kiln-dev/kiln/router"
	"github.com/kiln-dev/kiln/session"
)

// ErrorHandlerFunc lets a Container override how an error raised within
// the pipeline is rendered. If it panics or fails to produce a response
// (neither configures a body nor sends), the default JSON renderer runs
// instead — a
// misbehaving error handler must never take down the server.
type ErrorHandlerFunc func(err error, req *Request, resp *Response)

// registeredHandler is what a Container actually stores in the router: a
// HandlerFunc plus the Container that registered it. Recovering the
// owner at dispatch time is what lets mounted sub-containers keep their
// own global middleware and error handler even though router.Find walks
// transparently across the mount boundary (router.go's matchNode
// delegates into the sub-router's own table and returns its entries
// as if they were the host's).
type registeredHandler struct {
	owner *Container
	fn    HandlerFunc
}

// Container is the pipeline described by spec.md §4.6: a router, a
// dependency-injection scope, ordered global middleware, and a session
// store/signer pair. It is the direct analog of rivaas.dev/app's App,
// generalized to the specification's request/response/session model
// instead of that package's Context.
type Container struct {
	mu sync.RWMutex

	router *router.Router
	di     *DI

	store        session.Store
	signer       *session.Signer
	cookieName   string
	secureCookie bool

	maxBodyBytes int64
	maxFileBytes int64

	logger Logger

	globalMiddleware []MiddlewareFunc
	errorHandler     ErrorHandlerFunc

	routeNames map[string]string

	mounted bool // true once this container has been Mount-ed into a host
}

// New constructs a Container ready for route registration.
func New(opts ...Option) *Container {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Container{
		router:       router.New(),
		di:           NewDI(),
		store:        cfg.store,
		signer:       cfg.signer,
		cookieName:   cfg.cookieName,
		secureCookie: cfg.secureCookie,
		maxBodyBytes: cfg.maxBodyBytes,
		maxFileBytes: cfg.maxFileBytes,
		logger:       cfg.logger,
		routeNames:   make(map[string]string),
	}
}

// DI returns the container's dependency-injection scope.
func (c *Container) DI() *DI { return c.di }

// IsMounted reports whether this container has been installed as an
// isolated sub-application on some host via Mount. A mounted container
// can still bind its own listener (spec.md §4.8 "standalone mode"); this
// only reflects whether it is also reachable through a host's router.
func (c *Container) IsMounted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mounted
}

// Router exposes the underlying router for advanced registration needs
// (e.g. a caller building its own route table generator). Most callers
// should prefer GET/POST/etc.
func (c *Container) Router() *router.Router { return c.router }

// Use appends global middleware, applied to every route this container
// owns (not to routes owned by a mounted sub-container). Per spec.md
// §4.6, composition is re-evaluated per request, so Use is safe to call
// at any point before the container starts serving traffic; it takes
// effect for every subsequent dispatch, including ones matching routes
// registered earlier.
func (c *Container) Use(mw ...MiddlewareFunc) {
	c.mu.Lock()
	c.globalMiddleware = append(c.globalMiddleware, mw...)
	c.mu.Unlock()
}

// OnError installs a custom error handler for this container's own
// routes. Without one, errors render via kerrors.Format's default JSON
// body.
func (c *Container) OnError(h ErrorHandlerFunc) {
	c.mu.Lock()
	c.errorHandler = h
	c.mu.Unlock()
}

func (c *Container) register(method, path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	mwAny := make([]any, len(middleware))
	for i, m := range middleware {
		mwAny[i] = m
	}
	if err := c.router.Insert(method, path, registeredHandler{owner: c, fn: handler}, mwAny...); err != nil {
		panic(err) // registration is construction-time; spec.md treats conflicts as a build-time failure
	}
	return &Route{container: c, method: strings.ToUpper(method), template: path}
}

func (c *Container) GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodGet, path, handler, middleware...)
}

func (c *Container) POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodPost, path, handler, middleware...)
}

func (c *Container) PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodPut, path, handler, middleware...)
}

func (c *Container) PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodPatch, path, handler, middleware...)
}

func (c *Container) DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodDelete, path, handler, middleware...)
}

func (c *Container) HEAD(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodHead, path, handler, middleware...)
}

func (c *Container) OPTIONS(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return c.register(http.MethodOptions, path, handler, middleware...)
}

// Group returns a sugar registration surface that prefixes every path
// with prefix and prepends groupMiddleware to each route's own
// middleware list (spec.md §3.1 supplement).
func (c *Container) Group(prefix string, groupMiddleware ...MiddlewareFunc) *Group {
	return &Group{container: c, prefix: strings.TrimSuffix(prefix, "/"), middleware: groupMiddleware}
}

// Mount installs sub as an isolated container at prefix: sub keeps its
// own router, DI scope, global middleware, and error handler, but
// shares the host's session object, response object, and request id for
// any request that falls under prefix (spec.md §4.8). It delegates to
// router.MountSub for the actual path-table delegation, so lookups
// crossing the mount boundary are handled by the already-tested router
// matching code; Mount only records the ownership needed to recover the
// right Container at dispatch time (see registeredHandler).
func (c *Container) Mount(prefix string, sub *Container) error {
	if err := c.router.MountSub(prefix, sub.router); err != nil {
		return err
	}
	sub.mu.Lock()
	sub.mounted = true
	sub.mu.Unlock()
	return nil
}

// URLFor reconstructs a path for a named route by substituting params
// into its registered template (spec.md §3.1 supplement).
func (c *Container) URLFor(name string, params map[string]string) (string, bool) {
	c.mu.RLock()
	template, ok := c.routeNames[name]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	return buildURL(template, params), true
}

// handleError renders err via the installed error handler, falling back
// to the default JSON payload if none is installed, the handler panics,
// or it returns without sending a response.
func (c *Container) handleError(err error, req *Request, resp *Response) {
	c.mu.RLock()
	handler := c.errorHandler
	logger := c.logger
	c.mu.RUnlock()

	if handler != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logError(logger, req.Context(), "error handler panicked", "panic", p, "request_id", req.ID())
				}
			}()
			handler(err, req, resp)
		}()
		if resp.IsSent() || resp.kind != bodyUnset {
			return
		}
	}

	status, payload := kerrors.Format(err)
	if writeErr := resp.JSON(status, payload); writeErr != nil {
		logError(logger, req.Context(), "failed to write default error response", "error", writeErr, "request_id", req.ID())
	}
}

// snapshotGlobalMiddleware returns a copy of the container's current
// global middleware list, read under lock so Use calls from another
// goroutine never race a concurrent dispatch.
func (c *Container) snapshotGlobalMiddleware() []MiddlewareFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MiddlewareFunc, len(c.globalMiddleware))
	copy(out, c.globalMiddleware)
	return out
}

// dispatch resolves path against c's router and runs the composed
// pipeline (spec.md §4.6 steps 4-6). It does not touch the session or
// flush the response — ServeHTTP (or a standalone-mode sub-container's
// own ServeHTTP) owns those steps, since they must run exactly once per
// request regardless of how many mount boundaries the routing crossed.
func (c *Container) dispatch(req *Request, resp *Response, path string) {
	handler, middleware, params, err := c.router.Find(req.Method(), path)
	if err != nil {
		c.handleError(kerrors.NotFoundErr("route not found"), req, resp)
		return
	}

	rh, ok := handler.(registeredHandler)
	if !ok {
		c.handleError(kerrors.Newf(kerrors.Unexpected, "route registered with an unrecognized handler type"), req, resp)
		return
	}

	req.setParams(params)
	req.setDI(rh.owner.di)

	routeMiddleware := make([]MiddlewareFunc, len(middleware))
	for i, m := range middleware {
		routeMiddleware[i] = m.(MiddlewareFunc)
	}

	chain := append(rh.owner.snapshotGlobalMiddleware(), routeMiddleware...)

	runChain(chain, rh.fn, req, resp, func(chainErr error) {
		rh.owner.handleError(chainErr, req, resp)
	})
}

// ServeHTTP implements http.Handler: the full 8-step dispatch sequence
// from spec.md §4.6, entry point for both the top-level Server and any
// isolated container running in standalone listener mode.
func (c *Container) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := newRequest(r, c.cookieName, c.signer, c.maxBodyBytes, c.maxFileBytes)
	resp := newResponse(w)

	// Step 1: load session.
	data, found := c.store.Load(req.sessionID)
	if !found {
		data = nil
	}
	req.setSession(session.Load(req.sessionID, data, req.isNewSession))

	// Step 2: queue Set-Cookie for a newly minted session id.
	if req.isNewSession && !resp.HasCookie(c.cookieName) {
		value := req.sessionID
		if c.signer != nil {
			value = c.signer.Sign(req.sessionID)
		}
		resp.SetCookie(&http.Cookie{
			Name:     c.cookieName,
			Value:    value,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   c.secureCookie,
		})
	}

	// Step 3: request correlation header.
	resp.Header().Set("X-Request-Id", req.ID())

	// Steps 4-6: route resolution and the composed middleware/handler chain.
	c.dispatch(req, resp, req.Path())

	// Step 7: persist or destroy the session per the handler chain's
	// outcome. Destroyed is checked independently of Dirty since Destroy
	// clears the dirty flag after clearing the data (session.go).
	sess := req.Session()
	if sess.Destroyed() {
		c.store.Destroy(sess.ID())
	} else if sess.Dirty() {
		c.store.Save(sess.ID(), sess.Data(), 0)
	}

	// Step 8: flush exactly once.
	resp.send()
}
