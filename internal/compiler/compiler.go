// Package compiler implements Hypersonic's route analyzer: it turns the
// declared route table into pre-compiled structures that the dispatcher can
// walk in constant or near-constant time.
//
// The compiler organizes routes into two tiers, mirroring the dispatch
// policy of spec.md §4.2:
//
//  1. Static routes (no params, no wildcard): FNV-1a hash table lookup,
//     guarded by a bloom filter for fast negative rejection.
//  2. Dynamic routes (":name" segments, optional "*" tail): ordered by
//     specificity (more static segments first) and matched by direct
//     segment-position comparison, optionally narrowed by a first-segment
//     index.
//
// RouteCompiler is safe for concurrent reads after Freeze; registration
// (AddRoute) must complete before the server starts serving traffic —
// Hypersonic's Compile() step calls Freeze once route registration is done.
package compiler

import (
	"hash/fnv"
	"regexp"
	"sync"
	"sync/atomic"
)

// HandlerFunc is an opaque handler reference. The compiler never calls it —
// only the trampoline does — so it is kept untyped to avoid an import cycle
// back to the root package.
type HandlerFunc any

// RouteConstraint attaches a regular expression to a named path parameter.
// Hypersonic's route DSL does not expose per-param constraints in spec.md,
// but the mechanism is retained from the teacher because it costs nothing
// on the hot path when unused and gives CompileRoute a place to hang future
// validation.
type RouteConstraint struct {
	Param   string
	Pattern *regexp.Regexp
}

// minRoutesForIndexing is the minimum number of dynamic routes required
// before the first-segment index is worth building.
const minRoutesForIndexing = 10

// CompiledRoute is a route's structure as pre-computed during registration:
// segment positions, parameter names, and (optional) constraint patterns are
// all resolved once so that matching a request never re-parses the pattern.
type CompiledRoute struct {
	Method  string
	Pattern string
	hash    uint64

	segmentCount   int32
	staticSegments []string
	staticPos      []int32
	paramNames     []string
	paramPos       []int32
	constraints    []*regexp.Regexp

	Handlers []HandlerFunc

	// Index is the route's position in registration order — used as the
	// dispatcher's "handler_index" (spec.md §4.2) for dynamic routes and
	// as the key into the static-response cache for static ones.
	Index int

	isStatic       bool
	hasWildcard    bool
	hasConstraints bool
}

// IsStatic reports whether the route has no params and no wildcard tail.
func (r *CompiledRoute) IsStatic() bool { return r.isStatic }

// HasWildcard reports whether the route ends in a "*" catch-all segment.
func (r *CompiledRoute) HasWildcard() bool { return r.hasWildcard }

// ParamNames returns the parameter names in path order.
func (r *CompiledRoute) ParamNames() []string { return r.paramNames }

// CompileRoute pre-computes a route's structure for matching. pattern must
// already be normalized (leading "/", no trailing-slash collapsing — exact
// match per spec.md §8 "path with trailing / is not normalized").
func CompileRoute(method, pattern string, index int, handlers []HandlerFunc, constraints []RouteConstraint) *CompiledRoute {
	if pattern == "" {
		pattern = "/"
	}

	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte(pattern))

	route := &CompiledRoute{
		Method:   method,
		Pattern:  pattern,
		Handlers: handlers,
		Index:    index,
		hash:     h.Sum64(),
	}

	if pattern == "/" {
		route.isStatic = true
		return route
	}

	segments := splitSegments(pattern)
	route.segmentCount = int32(len(segments))

	if len(segments) > 0 && segments[len(segments)-1] == "*" {
		route.hasWildcard = true
		// The wildcard segment itself carries no name to extract; the
		// fixed segments in front of it are parsed exactly like a
		// non-wildcard route so matchWildcard (dynamic.go) can bind
		// them the same way.
		segments = segments[:len(segments)-1]
	}

	staticSegs := make([]string, 0, len(segments))
	staticPositions := make([]int32, 0, len(segments))
	paramNames := make([]string, 0, len(segments)/2+1)
	paramPositions := make([]int32, 0, len(segments)/2+1)
	constraintList := make([]*regexp.Regexp, 0, len(segments)/2+1)

	for i, seg := range segments {
		if len(seg) > 0 && seg[0] == ':' {
			name := seg[1:]
			paramNames = append(paramNames, name)
			paramPositions = append(paramPositions, int32(i))

			var pat *regexp.Regexp
			for _, c := range constraints {
				if c.Param == name {
					pat = c.Pattern
					route.hasConstraints = true
					break
				}
			}
			constraintList = append(constraintList, pat)
		} else {
			staticSegs = append(staticSegs, seg)
			staticPositions = append(staticPositions, int32(i))
		}
	}

	route.staticSegments = staticSegs
	route.staticPos = staticPositions
	route.paramNames = paramNames
	route.paramPos = paramPositions
	route.constraints = constraintList
	route.isStatic = len(paramNames) == 0 && !route.hasWildcard

	return route
}

func splitSegments(pattern string) []string {
	segs := make([]string, 0, 8)
	start := 0
	if len(pattern) > 0 && pattern[0] == '/' {
		start = 1
	}
	for i := start; i <= len(pattern); i++ {
		if i == len(pattern) || pattern[i] == '/' {
			if i > start {
				segs = append(segs, pattern[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

// RouteCompiler holds the compiled static and dynamic routes for a single
// HTTP method. Hypersonic's specialize package shards by method (see
// specialize.go), matching spec.md §4.2's "outer branch on method."
type RouteCompiler struct {
	staticRoutes map[uint64]*CompiledRoute
	staticBloom  *BloomFilter
	hasStatic    bool

	dynamicRoutes []*CompiledRoute

	firstSegmentIndex    [128][]*CompiledRoute
	hasFirstSegmentIndex bool

	frozen atomic.Bool
	mu     sync.RWMutex
}

// NewRouteCompiler creates an empty compiler. bloomSize/numHashFuncs size the
// bloom filter used to reject nonexistent static routes cheaply.
func NewRouteCompiler(bloomSize uint64, numHashFuncs int) *RouteCompiler {
	return &RouteCompiler{
		staticRoutes:  make(map[uint64]*CompiledRoute, 64),
		dynamicRoutes: make([]*CompiledRoute, 0, 32),
		staticBloom:   NewBloomFilter(bloomSize, numHashFuncs),
	}
}

// AddRoute registers a compiled route. Must be called before Freeze.
func (rc *RouteCompiler) AddRoute(route *CompiledRoute) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	switch {
	case route.isStatic:
		rc.staticRoutes[route.hash] = route
		rc.staticBloom.Add(routeKey(route.Method, route.Pattern))
		rc.hasStatic = true
	default:
		// Dynamic and wildcard routes share the specificity-ordered
		// slice; sortRoutesBySpecificity places every route with a
		// wildcard tail after every route without one.
		rc.dynamicRoutes = append(rc.dynamicRoutes, route)
		rc.sortRoutesBySpecificity()
		rc.hasFirstSegmentIndex = false
	}
}

func routeKey(method, pattern string) []byte {
	return []byte(method + pattern)
}

// Freeze marks the compiler read-only, letting LookupStatic skip its mutex
// on the hot path — the Go analogue of spec.md §3's "dispatch table is
// frozen at load time."
func (rc *RouteCompiler) Freeze() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.frozen.Store(true)
}

// sortRoutesBySpecificity puts wildcard routes after all other dynamic
// routes and, within each group, orders routes by descending number of
// static segments so more specific routes are tried first, then falls back
// to registration order for ties — matching spec.md §4.2's "first matching
// route wins" / §9's "first-declared-wins" tie-break (insertion sort is
// stable, so equal-specificity routes keep their relative order).
func (rc *RouteCompiler) sortRoutesBySpecificity() {
	routes := rc.dynamicRoutes
	for i := 1; i < len(routes); i++ {
		key := routes[i]
		keySpecificity := len(key.staticSegments)
		j := i - 1
		for j >= 0 && ((routes[j].hasWildcard && !key.hasWildcard) ||
			(routes[j].hasWildcard == key.hasWildcard && len(routes[j].staticSegments) < keySpecificity)) {
			routes[j+1] = routes[j]
			j--
		}
		routes[j+1] = key
	}
}
