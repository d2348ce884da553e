package hypersonic

import (
	"regexp"

	"github.com/hypersonic-dev/hypersonic/internal/compiler"
	"github.com/hypersonic-dev/hypersonic/internal/specialize"
	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
)

// RouteOption configures a single route registration, mirroring the
// teacher's app.RouteOption / app.WithBefore / app.WithAfter shape.
type RouteOption func(*routeConfig)

type routeConfig struct {
	before       []trampoline.BeforeFunc
	after        []trampoline.AfterFunc
	constraints  []compiler.RouteConstraint
	flags        specialize.RouteFlags
	forceDynamic bool
}

// WithBefore adds route-level before-middleware, run after any global
// before-middleware and before the handler.
func WithBefore(fns ...trampoline.BeforeFunc) RouteOption {
	return func(c *routeConfig) { c.before = append(c.before, fns...) }
}

// WithAfter adds route-level after-middleware, run before any global
// after-middleware.
func WithAfter(fns ...trampoline.AfterFunc) RouteOption {
	return func(c *routeConfig) { c.after = append(c.after, fns...) }
}

// WithConstraint attaches a regular expression a named path parameter must
// match for the route to be considered a match.
func WithConstraint(param string, pattern *regexp.Regexp) RouteOption {
	return func(c *routeConfig) {
		c.constraints = append(c.constraints, compiler.RouteConstraint{Param: param, Pattern: pattern})
	}
}

// WithFlags ORs explicit feature flags onto the route, in addition to
// whatever the handler-name inspection auto-detects.
func WithFlags(flags specialize.RouteFlags) RouteOption {
	return func(c *routeConfig) { c.flags |= flags }
}

// WithForceDynamic opts a literal-path GET/HEAD/OPTIONS route out of
// compile-time precomputation, for a handler whose response legitimately
// changes between calls with no request input (a clock, a counter, ...).
func WithForceDynamic() RouteOption {
	return func(c *routeConfig) { c.forceDynamic = true }
}

func resolveRouteConfig(opts []RouteOption) *routeConfig {
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
