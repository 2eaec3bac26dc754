// Package requestid exposes kiln's per-request correlation id to code
// that only has a context.Context, not a *kiln.Request — downstream
// loggers, tracers, or library calls that accept a plain context.
//
// kiln's Container already assigns and echoes the request id per
// spec.md §4.6 step 3 / §6 (X-Request-Id header, inbound value or a
// fresh UUID v4): this package does not reassign it, it just lifts the
// value kiln already computed into the request's context.Context so
// anything downstream can read it without a dependency on the kiln
// package itself.
//
// Usage:
//
//	c := kiln.New()
//	c.Use(requestid.Middleware())
//	// ... deep inside some library call that only has a context.Context:
//	id := requestid.FromContext(ctx)
package requestid

import (
	"context"

	"github.com/kiln-dev/kiln"
)

type contextKey struct{}

// Middleware stores the request's id (already assigned by kiln's
// Container before any middleware runs) into the request's context.
func Middleware() kiln.MiddlewareFunc {
	return func(req *kiln.Request, resp *kiln.Response, next kiln.Next) {
		ctx := context.WithValue(req.Context(), contextKey{}, req.ID())
		req.SetContext(ctx)
		next()
	}
}

// FromContext retrieves the request id stored by Middleware, or "" if
// absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
