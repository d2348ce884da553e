package trampoline

// HandlerFunc is the user-supplied route handler. The return value is
// rendered by Render; the error is the "handler returned an error" case of
// spec.md §4.5 step 9.
type HandlerFunc func(*Request) (any, error)

// BeforeFunc is a callable (non-inlined) before-middleware. Returning
// short=true stops the chain and renders value/err immediately without
// invoking the handler (spec.md §4.5 step 7's short-circuit).
type BeforeFunc func(*Request) (value any, err error, short bool)

// AfterFunc is a callable after-middleware; it may replace the rendered
// response (e.g. to add a header) or pass it through unchanged.
type AfterFunc func(*Request, Rendered) Rendered

// InlineMiddleware is native-builder middleware: bound into the
// specialization at Compile() time rather than invoked through a callable
// chain, so it runs before any route-level or global callable middleware
// and cannot be short-circuited by them (spec.md §5's "native-builder
// middleware wraps the callable chain, not the other way around").
type InlineMiddleware interface {
	Before(*Request)
	After(*Request, *Rendered)
}

// Chain is the resolved middleware sandwich for one route: native-builder
// middleware on the outside, then global callables, then route-specific
// callables, then the handler, unwinding in reverse for the after phase.
type Chain struct {
	Inline       []InlineMiddleware
	GlobalBefore []BeforeFunc
	RouteBefore  []BeforeFunc
	Handler      HandlerFunc
	RouteAfter   []AfterFunc
	GlobalAfter  []AfterFunc
}

// Run executes the full before -> handler -> after sandwich for req,
// implementing spec.md §4.5 steps 7-9 in order: native before, global
// before, route before (first short-circuit wins), handler, route after,
// global after, native after.
func (c Chain) Run(req *Request) Rendered {
	for _, mw := range c.Inline {
		mw.Before(req)
	}

	for _, before := range c.GlobalBefore {
		if value, err, short := before(req); short {
			return c.runAfter(req, Render(value, err))
		}
	}
	for _, before := range c.RouteBefore {
		if value, err, short := before(req); short {
			return c.runAfter(req, Render(value, err))
		}
	}

	value, err := c.Handler(req)
	rendered := Render(value, err)
	return c.runAfter(req, rendered)
}

func (c Chain) runAfter(req *Request, rendered Rendered) Rendered {
	for _, after := range c.RouteAfter {
		rendered = after(req, rendered)
	}
	for _, after := range c.GlobalAfter {
		rendered = after(req, rendered)
	}
	for i := len(c.Inline) - 1; i >= 0; i-- {
		c.Inline[i].After(req, &rendered)
	}
	return rendered
}
