package kiln

// Group is sugar over repeated registration calls sharing a path prefix
// and a common set of route middleware (spec.md §3.1 supplement,
// grounded in rivaas.dev/app/group.go's Group type). It is not a new
// router concept — every route registered through a Group still lands
// in the owning Container's own router and DI scope; a Group has no
// router or DI scope of its own, unlike a Mount-ed isolated Container.
type Group struct {
	container  *Container
	prefix     string
	middleware []MiddlewareFunc
}

func (g *Group) path(p string) string {
	if p == "/" {
		return g.prefix
	}
	return g.prefix + p
}

func (g *Group) chain(middleware []MiddlewareFunc) []MiddlewareFunc {
	out := make([]MiddlewareFunc, 0, len(g.middleware)+len(middleware))
	out = append(out, g.middleware...)
	out = append(out, middleware...)
	return out
}

func (g *Group) GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.GET(g.path(path), handler, g.chain(middleware)...)
}

func (g *Group) POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.POST(g.path(path), handler, g.chain(middleware)...)
}

func (g *Group) PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.PUT(g.path(path), handler, g.chain(middleware)...)
}

func (g *Group) PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.PATCH(g.path(path), handler, g.chain(middleware)...)
}

func (g *Group) DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.DELETE(g.path(path), handler, g.chain(middleware)...)
}

func (g *Group) HEAD(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.HEAD(g.path(path), handler, g.chain(middleware)...)
}

func (g *Group) OPTIONS(path string, handler HandlerFunc, middleware ...MiddlewareFunc) *Route {
	return g.container.OPTIONS(g.path(path), handler, g.chain(middleware)...)
}

// Group returns a nested group whose prefix and middleware extend g's.
func (g *Group) Group(prefix string, middleware ...MiddlewareFunc) *Group {
	return &Group{container: g.container, prefix: g.path(prefix), middleware: g.chain(middleware)}
}
