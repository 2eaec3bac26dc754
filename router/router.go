// Package router implements the radix-tree path matcher described by the
// routing component of the specification: static, regex-constrained
// parameter, and wildcard-parameter segments, isolated sub-router
// mounting, and deterministic match precedence.
//
// The package is intentionally transport-agnostic. It knows nothing
// about net/http, middleware signatures, or request/response objects —
// handlers and middleware are stored and returned as `any`. The pipeline
// layer that embeds a Router is responsible for type-asserting them back
// to its own function types. This keeps the matching structure reusable
// and trivially testable in isolation, the way rivaas.dev/router keeps
// its routeCompiler independent of Context.
package router

import (
	"strings"
	"sync"
)

// Params holds the path parameters bound by a successful Find.
type Params map[string]string

// Get returns the bound value for name, or "" if it was not bound.
func (p Params) Get(name string) string {
	return p[name]
}

// Router is a radix-tree matcher for (method, path) -> handler. It is
// safe for concurrent use: registration takes an exclusive lock, lookups
// take a shared lock, matching spec.md's "read-heavy, write-rare"
// resource policy for the router.
type Router struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty Router ready for registration.
func New() *Router {
	return &Router{root: newNode(nodeRoot)}
}

// Insert registers handler (and optional per-route middleware) for
// method at path. It fails with ErrRouteConflict if a handler is already
// registered for the same (method, normalized path), and with
// ErrMalformedRoute if a segment uses invalid ":name(pattern)" syntax or
// the regex does not compile.
func (r *Router) Insert(method, path string, handler any, middleware ...any) error {
	method = strings.ToUpper(method)
	segments := splitPath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.root
	for _, raw := range segments {
		seg, err := parseSegment(raw)
		if err != nil {
			return err
		}
		child, err := cur.childFor(seg)
		if err != nil {
			return err
		}
		cur = child
	}

	if _, exists := cur.handlers[method]; exists {
		return ErrRouteConflict
	}
	cur.handlers[method] = routeEntry{handler: handler, middleware: append([]any(nil), middleware...)}
	return nil
}

// MountSub delegates the sub-path remaining after prefix to sub. It
// fails with ErrRouteConflict if a sub-router is already mounted at
// prefix. A router must not be mounted into itself, directly or
// transitively; callers are responsible for not constructing such a
// cycle (the router has no back-reference to detect it).
func (r *Router) MountSub(prefix string, sub *Router) error {
	segments := splitPath(prefix)

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.root
	for _, raw := range segments {
		seg, err := parseSegment(raw)
		if err != nil {
			return err
		}
		child, err := cur.childFor(seg)
		if err != nil {
			return err
		}
		cur = child
	}

	if cur.mounted != nil {
		return ErrRouteConflict
	}
	cur.mounted = sub
	return nil
}

// Find matches method and path against the tree and returns the bound
// handler, middleware, and parameters. Find returns ErrNotFound when no
// route matches, whether the path is entirely unknown or known only for
// other methods.
func (r *Router) Find(method, path string) (handler any, middleware []any, params Params, err error) {
	method = strings.ToUpper(method)
	segments := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	params = Params{}
	entry, ok := matchNode(r.root, segments, method, params)
	if !ok {
		return nil, nil, nil, ErrNotFound
	}
	return entry.handler, entry.middleware, params, nil
}

// matchNode attempts to resolve method against node for the given
// remaining segments, binding parameters into params as it descends.
// Precedence at each depth is static > regex-parameter > wildcard-
// parameter, with backtracking across siblings of the same class; any
// parameter bound while exploring a branch that ultimately fails is
// removed before trying the next sibling.
func matchNode(n *node, segments []string, method string, params Params) (routeEntry, bool) {
	if n.mounted != nil {
		sub := n.mounted
		tail := joinPath(segments)
		sub.mu.RLock()
		defer sub.mu.RUnlock()
		subParams := Params{}
		entry, ok := matchNode(sub.root, splitPath(tail), method, subParams)
		if !ok {
			return routeEntry{}, false
		}
		for k, v := range subParams {
			params[k] = v
		}
		return entry, true
	}

	if len(segments) == 0 {
		entry, ok := n.handlers[method]
		return entry, ok
	}

	head, rest := segments[0], segments[1:]

	if child, ok := n.staticChildren[head]; ok {
		if entry, ok := matchNode(child, rest, method, params); ok {
			return entry, true
		}
	}

	for _, child := range n.regexChildren {
		if !child.pattern.MatchString(head) {
			continue
		}
		prior, hadPrior := params[child.paramName]
		params[child.paramName] = head
		if entry, ok := matchNode(child, rest, method, params); ok {
			return entry, true
		}
		if hadPrior {
			params[child.paramName] = prior
		} else {
			delete(params, child.paramName)
		}
	}

	for _, child := range n.wildcardChildren {
		prior, hadPrior := params[child.paramName]
		params[child.paramName] = head
		if entry, ok := matchNode(child, rest, method, params); ok {
			return entry, true
		}
		if hadPrior {
			params[child.paramName] = prior
		} else {
			delete(params, child.paramName)
		}
	}

	return routeEntry{}, false
}
