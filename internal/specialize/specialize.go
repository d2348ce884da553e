package specialize

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"reflect"
	"runtime"
	"strconv"
	"time"

	"github.com/hypersonic-dev/hypersonic/internal/asyncpool"
	"github.com/hypersonic-dev/hypersonic/internal/compiler"
	"github.com/hypersonic-dev/hypersonic/internal/herrors"
	"github.com/hypersonic-dev/hypersonic/internal/middleware/compression"
	"github.com/hypersonic-dev/hypersonic/internal/middleware/recovery"
	"github.com/hypersonic-dev/hypersonic/internal/middleware/security"
	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
)

// bodyConsumingMethods are the methods spec.md §3 treats as inherently
// dynamic ("body-consuming method with handler opting in"): a precomputed
// response for a route that reads a request body would be meaningless.
var bodyConsumingMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// RouteDef is one route registration as the root package hands it to
// Compile: the analyzer's raw material before classification.
type RouteDef struct {
	Method      string
	Pattern     string
	Handler     trampoline.HandlerFunc
	Before      []trampoline.BeforeFunc
	After       []trampoline.AfterFunc
	Constraints []compiler.RouteConstraint

	// Flags are explicit feature flags the caller already knows it needs;
	// ORed with the analyzer's own (conservative, add-only) inspection.
	Flags RouteFlags

	// ForceDynamic opts a literal-path GET/HEAD/OPTIONS route out of
	// compile-time precomputation — spec.md §3's "dynamic ⇔ ... OR
	// explicit flag" escape hatch for a static-looking path whose handler
	// still needs to run per request (a counter, a clock, ...).
	ForceDynamic bool
}

// Options configures a Compile call: the server-wide, non-route-specific
// behavior (security headers, compression policy, body size limits,
// global middleware).
type Options struct {
	TLS bool

	SecurityOptions    []security.Option
	CompressionOptions []compression.Option
	RecoveryOptions    []recovery.Option
	MaxBodySize        int64
	GlobalBefore       []trampoline.BeforeFunc
	GlobalAfter        []trampoline.AfterFunc
	InlineMiddleware   []trampoline.InlineMiddleware
	BloomSize          uint64
	BloomHashFuncs     int

	// AsyncPoolSize is the number of goroutines backing the async pool
	// (spec.md §5 ¶2). 0 means no pool is built; routes that call
	// Request.Offload without one just run inline.
	AsyncPoolSize  int
	AsyncPoolQueue int

	// Recorder, when set, receives a RecordRequest call for every response
	// writeFinal produces (spec.md §8's throughput/latency Testable
	// Properties). Nil means metrics are not collected.
	Recorder Recorder
}

// Recorder receives the outcome of every completed request: method, the
// route pattern it matched ("unmatched" for a 404), final status, and
// handling latency. internal/metrics.Metrics satisfies this; it is its own
// interface here (rather than specialize importing internal/metrics
// directly) so this package stays usable without ever linking Prometheus.
type Recorder interface {
	RecordRequest(method, route string, status int, elapsed time.Duration)
}

// Specialization is the in-memory result of Compile: everything a Worker
// needs to answer requests without ever re-walking the route table. It
// satisfies http.Handler directly.
type Specialization struct {
	compilers map[string]*compiler.RouteCompiler
	routes    []*compiler.CompiledRoute

	chains     map[*compiler.CompiledRoute]trampoline.Chain
	static     map[*compiler.CompiledRoute]trampoline.Rendered
	routeFlags map[*compiler.CompiledRoute]RouteFlags

	security    *security.Headers
	compression *compression.Compressor
	recovery    *recovery.Recovery
	pool        *asyncpool.Pool

	flags       ServerFlags
	notFound    trampoline.Rendered
	maxBodySize int64
	cacheKey    string
	recorder    Recorder
}

// Close releases resources the Specialization owns for the server's
// lifetime — currently just the async pool's worker goroutines, if one was
// built (spec.md §3: "explicitly freed on graceful shutdown").
func (s *Specialization) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Flags returns the derived server-wide feature flags (spec.md §4.1's
// has_dynamic/needs_query/... booleans).
func (s *Specialization) Flags() ServerFlags { return s.flags }

// CacheKey is the content-addressed identity of this specialization: the
// same route table, handlers (by registration order and pattern, not by
// closure identity — Go cannot hash closures), and options always produce
// the same key, standing in for spec.md §4.3's deterministic
// content-addressed compiled-artifact cache.
func (s *Specialization) CacheKey() string { return s.cacheKey }

// Dispatch is the Specialization's http.Handler entry point, the Go
// analogue of the native build's resolved `dispatch` symbol (spec.md
// §4.3). Kept as a named method value (not just relying on the interface)
// so callers can see that Compile produced a usable one.
func (s *Specialization) Dispatch() http.Handler { return s }

// ServeHTTP implements the generated dispatcher + trampoline pipeline:
// method/path lookup, static short-circuit, dynamic trampoline, response
// finalization (security headers, compression, Content-Length).
func (s *Specialization) ServeHTTP(w http.ResponseWriter, hr *http.Request) {
	start := time.Now()
	rc := s.compilers[hr.Method]
	if rc == nil {
		s.writeFinal(w, hr, s.notFound, start, "unmatched")
		return
	}

	if route := rc.LookupStatic(hr.Method, hr.URL.Path); route != nil {
		if rendered, ok := s.static[route]; ok {
			s.writeFinal(w, hr, rendered, start, route.Pattern)
			return
		}
		s.serveRoute(w, hr, route, start)
		return
	}

	req, rejected, ok := trampoline.BuildRequest(hr, s.requestOptions(w))
	if !ok {
		s.writeFinal(w, hr, rejected, start, "unmatched")
		return
	}

	route := rc.MatchDynamic(hr.Method, hr.URL.Path, req)
	if route == nil {
		s.writeFinal(w, hr, s.notFound, start, "unmatched")
		return
	}

	chain := s.chains[route]
	rendered := s.recovery.Protect(req, func() trampoline.Rendered { return chain.Run(req) })
	if s.routeFlags[route].Any(FlagStreaming | FlagWebSocket) {
		return
	}
	s.writeFinal(w, hr, rendered, start, route.Pattern)
}

func (s *Specialization) serveRoute(w http.ResponseWriter, hr *http.Request, route *compiler.CompiledRoute, start time.Time) {
	req, rejected, ok := trampoline.BuildRequest(hr, s.requestOptions(w))
	if !ok {
		s.writeFinal(w, hr, rejected, start, route.Pattern)
		return
	}
	chain := s.chains[route]
	rendered := s.recovery.Protect(req, func() trampoline.Rendered { return chain.Run(req) })
	if s.routeFlags[route].Any(FlagStreaming | FlagWebSocket) {
		return
	}
	s.writeFinal(w, hr, rendered, start, route.Pattern)
}

// requestOptions attaches a streaming sink to every request; routes that
// never touch it (the overwhelming majority) pay only the cost of building
// one small struct, matching the trampoline's "streaming handlers get an
// explicit Sink object they own" contract (spec.md §9) without the
// dispatcher needing to special-case which routes asked for it.
func (s *Specialization) requestOptions(w http.ResponseWriter) trampoline.Options {
	opts := trampoline.Options{MaxBodySize: s.maxBodySize, Sink: trampoline.NewHTTPSink(w)}
	if s.pool != nil {
		pool := s.pool
		opts.Offload = func(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
			return pool.Do(ctx, fn)
		}
	}
	return opts
}

// writeFinal applies the security-header splice and, if the response is
// eligible and the client accepts it, gzip compression, recomputes
// Content-Length, and writes the response. This runs for both precomputed
// and freshly-rendered responses: baked bodies still need a per-request
// compression decision, since Accept-Encoding cannot be known at Compile
// time (spec.md §8 Testable Property 4: Content-Length always matches the
// final body, "after optional gzip").
func (s *Specialization) writeFinal(w http.ResponseWriter, hr *http.Request, rendered trampoline.Rendered, start time.Time, route string) {
	if rendered.Headers == nil {
		rendered.Headers = http.Header{}
	}
	s.security.Apply(rendered.Headers)

	contentType := rendered.Headers.Get("Content-Type")
	if s.compression.ShouldCompress(hr.URL.Path, contentType, len(rendered.Body)) &&
		compression.Negotiate(hr.Header.Get("Accept-Encoding")) {
		if compressed, encoding, ok := s.compression.Compress(rendered.Body); ok {
			rendered.Body = compressed
			rendered.Headers.Set("Content-Encoding", encoding)
			rendered.Headers.Set("Vary", "Accept-Encoding")
		}
	}

	trampoline.WriteResponse(w, rendered)

	if s.recorder != nil {
		status := rendered.Status
		if status == 0 {
			status = http.StatusOK
		}
		s.recorder.RecordRequest(hr.Method, route, status, time.Since(start))
	}
}

// Compile runs the Route Analyzer + Code Generator + Native Build Driver
// pipeline (spec.md §4.1-§4.3) over defs, returning a ready-to-serve
// Specialization or a *herrors.CompileError explaining why the table could
// not be frozen.
func Compile(defs []RouteDef, opts Options) (*Specialization, error) {
	bloomSize := opts.BloomSize
	if bloomSize == 0 {
		bloomSize = 8192
	}
	bloomHashFuncs := opts.BloomHashFuncs
	if bloomHashFuncs == 0 {
		bloomHashFuncs = 3
	}

	s := &Specialization{
		compilers:   make(map[string]*compiler.RouteCompiler),
		chains:      make(map[*compiler.CompiledRoute]trampoline.Chain),
		static:      make(map[*compiler.CompiledRoute]trampoline.Rendered),
		routeFlags:  make(map[*compiler.CompiledRoute]RouteFlags),
		security:    security.Build(opts.TLS, opts.SecurityOptions...),
		compression: compression.Build(opts.CompressionOptions...),
		recovery:    recovery.Build(opts.RecoveryOptions...),
		maxBodySize: opts.MaxBodySize,
		recorder:    opts.Recorder,
	}
	if opts.AsyncPoolSize > 0 {
		s.pool = asyncpool.New(opts.AsyncPoolSize, opts.AsyncPoolQueue)
	}

	seen := make(map[string]bool, len(defs)) // "METHOD path" for static dup detection
	var routeFlags []RouteFlags
	hasDynamic, hasStatic := false, false
	methods := make(map[string]bool)
	var prefixes []string

	for i, def := range defs {
		method := def.Method
		pattern := def.Pattern
		if pattern == "" || pattern[0] != '/' {
			return nil, herrors.InvalidPathError(method, pattern, "path must start with \"/\"")
		}

		rc := s.compilers[method]
		if rc == nil {
			rc = compiler.NewRouteCompiler(bloomSize, bloomHashFuncs)
			s.compilers[method] = rc
		}

		route := compiler.CompileRoute(method, pattern, i, []compiler.HandlerFunc{def.Handler}, def.Constraints)

		if route.IsStatic() {
			key := method + " " + pattern
			if seen[key] {
				return nil, herrors.DuplicateRouteError(method, pattern)
			}
			seen[key] = true
		}

		rc.AddRoute(route)
		s.routes = append(s.routes, route)

		chain := trampoline.Chain{
			Inline:       opts.InlineMiddleware,
			GlobalBefore: opts.GlobalBefore,
			RouteBefore:  def.Before,
			Handler:      def.Handler,
			RouteAfter:   def.After,
			GlobalAfter:  opts.GlobalAfter,
		}
		s.chains[route] = chain

		flags := def.Flags | inspectHandlerName(funcName(def.Handler))
		routeFlags = append(routeFlags, flags)
		s.routeFlags[route] = flags

		if route.IsStatic() {
			hasStatic = true
		} else {
			hasDynamic = true
		}
		methods[method] = true
		prefixes = append(prefixes, pattern)

		eligible := route.IsStatic() && !bodyConsumingMethods[method] && !def.ForceDynamic && !flags.Any(FlagStreaming|FlagWebSocket)
		if eligible {
			rendered := s.recovery.Protect(nil, func() trampoline.Rendered {
				return chain.Run(zeroRequest(method, pattern))
			})
			s.static[route] = rendered
		}
	}

	for _, rc := range s.compilers {
		rc.Freeze()
	}

	singleMethod := ""
	if len(methods) == 1 {
		for m := range methods {
			singleMethod = m
		}
	}

	s.flags = deriveServerFlags(
		routeFlags, hasDynamic, hasStatic, singleMethod, commonPrefix(prefixes),
		len(opts.GlobalBefore) > 0, len(opts.GlobalAfter) > 0, hasRouteMiddleware(defs),
	)

	s.notFound = trampoline.Rendered{
		Status:  http.StatusNotFound,
		Headers: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:    []byte("Not Found"),
	}

	s.cacheKey = computeCacheKey(defs, opts)

	return s, nil
}

// zeroRequest builds the zero-value slot object used to invoke a static
// route's handler once at compile time: no query string, no body, no
// params — exactly what a literal-path GET route with no request data is
// allowed to look at.
func zeroRequest(method, path string) *trampoline.Request {
	return &trampoline.Request{Method: method, Path: path}
}

func hasRouteMiddleware(defs []RouteDef) bool {
	for _, d := range defs {
		if len(d.Before) > 0 || len(d.After) > 0 {
			return true
		}
	}
	return false
}

func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	prefix := paths[0]
	for _, p := range paths[1:] {
		i := 0
		for i < len(prefix) && i < len(p) && prefix[i] == p[i] {
			i++
		}
		prefix = prefix[:i]
	}
	if prefix == "/" || prefix == "" {
		return ""
	}
	return prefix
}

func computeCacheKey(defs []RouteDef, opts Options) string {
	entries := make([]string, len(defs))
	for i, d := range defs {
		entries[i] = fmt.Sprintf("%s %s f=%d dyn=%t", d.Method, d.Pattern, d.Flags, d.ForceDynamic)
	}

	h := fnv.New64a()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{0})
	}
	h.Write([]byte("tls=" + strconv.FormatBool(opts.TLS)))
	h.Write([]byte("maxbody=" + strconv.FormatInt(opts.MaxBodySize, 10)))

	return strconv.FormatUint(h.Sum64(), 16)
}

// funcName resolves a handler's runtime name for the analyzer's syntactic
// inspection (flags.go's inspectHandlerName): Go gives no source access to
// a compiled function, so this is the best-effort "deparsing" spec.md
// §4.1 describes — a name like "HandleUserJSON" hints parse_json without
// ever reading source.
func funcName(fn trampoline.HandlerFunc) string {
	pc := reflect.ValueOf(fn).Pointer()
	if rf := runtime.FuncForPC(pc); rf != nil {
		return rf.Name()
	}
	return ""
}
