package kiln

import "strings"

// Route is the handle returned by a registration method, letting callers
// attach a name after the fact for URLFor reconstruction — the same
// pattern rivaas.dev/router/route.Route uses, narrowed to just naming
// since kiln's router has no per-segment constraint API to expose here.
type Route struct {
	container *Container
	method    string
	template  string // raw path as registered, e.g. "/users/:id(\\d+)"
}

// Name registers this route under name for Container.URLFor lookups.
// Calling Name twice on the same route with different names leaves both
// names bound to this route; reusing a name already bound to another
// route rebinds it to this one.
func (rt *Route) Name(name string) *Route {
	rt.container.mu.Lock()
	rt.container.routeNames[name] = rt.template
	rt.container.mu.Unlock()
	return rt
}

// buildURL substitutes params into template's ":name" / ":name(pattern)"
// segments, producing a concrete path. It does not validate params
// against the pattern — URLFor trusts the caller to supply values that
// satisfy whatever constraint the route declared.
func buildURL(template string, params map[string]string) string {
	segments := strings.Split(strings.Trim(template, "/"), "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if !strings.HasPrefix(seg, ":") {
			out = append(out, seg)
			continue
		}
		body := seg[1:]
		if idx := strings.IndexByte(body, '('); idx != -1 {
			body = body[:idx]
		}
		out = append(out, params[body])
	}
	return "/" + strings.Join(out, "/")
}
