// Package kiln implements the request pipeline described by the
// specification: Request/Response construction, global and per-route
// middleware composition, handler dispatch, error interception, session
// load/save, and isolated sub-application ("mount") containers. It is
// the load-bearing layer that embeds router.Router and session.Signer/
// Store — the equivalent, in this repository, of rivaas.dev/app's role
// wrapping rivaas.dev/router.
package kiln

// HandlerFunc is the terminal step of a pipeline: it receives the fully
// constructed Request and Response and is expected to produce a
// response, directly or by delegating to Response's helpers.
type HandlerFunc func(*Request, *Response)

// Next is the opaque continuation passed to a MiddlewareFunc. Calling it
// runs the remainder of the chain (subsequent middleware, then the
// handler); not calling it terminates the pipeline, and the middleware
// is expected to have produced a response itself.
type Next func()

// MiddlewareFunc is one link in the ordered pipeline described by
// spec.md §4.6. The "after next()" portion of the function body runs
// once the downstream chain unwinds, giving middleware the classic
// around-advice shape.
type MiddlewareFunc func(*Request, *Response, Next)
