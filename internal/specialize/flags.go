// Package specialize is Hypersonic's code generator and native build
// driver (spec.md §4.2/§4.3): it lowers a registered route table into a
// Specialization — a closed set of Go data structures a Worker dispatches
// against, instead of the source-level C/Rust the original system
// compiles and dlopen's (see SPEC_FULL.md §1 for the realization this
// repo chose).
package specialize

// RouteFlags is the per-route feature-detection bitset spec.md §4.1
// assigns to each registered route (parse_query, parse_headers, ...). It
// replaces the teacher's narrower set of ad-hoc booleans with a single
// bitset so flag propagation (route -> server, §4.1 ¶2) is a plain OR
// reduction instead of one boolean accumulator per feature.
type RouteFlags uint32

const (
	FlagParseQuery RouteFlags = 1 << iota
	FlagParseHeaders
	FlagParseCookies
	FlagParseJSON
	FlagParseForm
	FlagStreaming
	FlagWebSocket
	FlagAsyncPool
	FlagSecurityHeaders
	FlagNeedNativeBuilder
)

// Has reports whether every bit in want is set in f.
func (f RouteFlags) Has(want RouteFlags) bool { return f&want == want }

// Any reports whether f shares any bit with want.
func (f RouteFlags) Any(want RouteFlags) bool { return f&want != 0 }

// WithImplied returns f with the flags that §4.1 says are implied by
// downstream feature use added: "if any needs parse_headers (or uses any
// downstream feature — cookies/json/form — which implies header
// parsing), header parsing is emitted."
func (f RouteFlags) WithImplied() RouteFlags {
	if f.Any(FlagParseCookies | FlagParseJSON | FlagParseForm) {
		f |= FlagParseHeaders
	}
	return f
}

// ServerFlags are the derived server-level booleans spec.md §4.1 lists
// (has_dynamic, needs_query, ...), computed once during Compile() by
// OR-reducing every route's RouteFlags plus a couple of table-shape facts
// (single method, common path prefix) that aren't per-route at all.
type ServerFlags struct {
	HasDynamic         bool
	HasStatic          bool
	NeedsQuery         bool
	NeedsHeaders       bool
	NeedsCookies       bool
	NeedsJSON          bool
	NeedsForm          bool
	NeedsStreaming     bool
	NeedsWebSocket     bool
	NeedsAsyncPool     bool
	HasGlobalBefore    bool
	HasGlobalAfter     bool
	HasRouteMiddleware bool
	HasAnyMiddleware   bool

	SingleMethod string // non-empty iff every route uses the same HTTP method
	CommonPrefix string // longest shared path prefix longer than "/", or ""
}

// deriveServerFlags OR-reduces every route's flags into the server-wide
// booleans. hasDynamic/hasStatic and the prefix/method facts are supplied
// by the caller (Compile), which already walks the route list once for
// registration and can accumulate them there without a second pass.
func deriveServerFlags(routeFlags []RouteFlags, hasDynamic, hasStatic bool, singleMethod, commonPrefix string, hasGlobalBefore, hasGlobalAfter, hasRouteMiddleware bool) ServerFlags {
	var combined RouteFlags
	for _, f := range routeFlags {
		combined |= f.WithImplied()
	}

	return ServerFlags{
		HasDynamic:         hasDynamic,
		HasStatic:          hasStatic,
		NeedsQuery:         combined.Has(FlagParseQuery),
		NeedsHeaders:       combined.Has(FlagParseHeaders),
		NeedsCookies:       combined.Has(FlagParseCookies),
		NeedsJSON:          combined.Has(FlagParseJSON),
		NeedsForm:          combined.Has(FlagParseForm),
		NeedsStreaming:     combined.Has(FlagStreaming),
		NeedsWebSocket:     combined.Has(FlagWebSocket),
		NeedsAsyncPool:     combined.Has(FlagAsyncPool),
		HasGlobalBefore:    hasGlobalBefore,
		HasGlobalAfter:     hasGlobalAfter,
		HasRouteMiddleware: hasRouteMiddleware,
		HasAnyMiddleware:   hasGlobalBefore || hasGlobalAfter || hasRouteMiddleware,
		SingleMethod:       singleMethod,
		CommonPrefix:       commonPrefix,
	}
}

// inspectHandlerName is the analyzer's syntactic best-effort auto-detection
// (spec.md §4.1 ¶2, SPEC_FULL.md §4.1): it looks only at the handler
// function's runtime name (via runtime.FuncForPC, supplied by the caller
// as fn's resolved name — Go gives no source access to a compiled
// function) for substrings that name a request facet, and ORs in the
// matching flag. It never clears a flag an explicit RouteOption set,
// satisfying "absence of inspection never sets extra flags" by only ever
// adding bits.
func inspectHandlerName(name string) RouteFlags {
	var f RouteFlags
	for _, hint := range []struct {
		substr string
		flag   RouteFlags
	}{
		{"Query", FlagParseQuery},
		{"Header", FlagParseHeaders},
		{"Cookie", FlagParseCookies},
		{"JSON", FlagParseJSON},
		{"Form", FlagParseForm},
		{"Stream", FlagStreaming},
		{"WebSocket", FlagWebSocket},
		{"WS", FlagWebSocket},
	} {
		if containsFold(name, hint.substr) {
			f |= hint.flag
		}
	}
	return f
}

func containsFold(s, substr string) bool {
	if len(substr) == 0 || len(s) < len(substr) {
		return false
	}
	ls, lsub := toLowerASCII(s), toLowerASCII(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if ls[i:i+len(lsub)] == lsub {
			return true
		}
	}
	return false
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
