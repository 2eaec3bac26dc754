package kiln

import "github.com/kiln-dev/kiln/kerrors"

// runChain executes middleware in order followed by handler, implementing
// the "(request, response, next)" composition from spec.md §4.6 with a
// cursor over the (already-concatenated) middleware slice rather than a
// precomputed closure graph, exactly as the specification allows.
//
// Handler/middleware code signals an error by panicking with it (the
// idiomatic-Go rendering of the specification's "user code raises a
// typed error to skip to the error handler" design note); runChain
// recovers any such panic and reports it through onError. A panic value
// that is not an error is wrapped as kerrors.Unexpected so the default
// renderer never leaks an arbitrary panic payload to the client.
func runChain(middleware []MiddlewareFunc, handler HandlerFunc, req *Request, resp *Response, onError func(error)) {
	defer func() {
		if p := recover(); p != nil {
			onError(panicToError(p))
		}
	}()

	idx := -1
	var next Next
	next = func() {
		idx++
		if idx < len(middleware) {
			middleware[idx](req, resp, next)
			return
		}
		handler(req, resp)
	}
	next()
}

func panicToError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return kerrors.Newf(kerrors.Unexpected, "panic: %v", p)
}
