package compiler

// ParamSink receives extracted path parameters. The trampoline's Request
// implements it directly against its params map (spec.md §3 slot 3),
// keeping the compiler free of any dependency on the trampoline package.
type ParamSink interface {
	SetParam(name, value string)
}

// MatchDynamic tries to match path (without its query string) against the
// method's dynamic routes, in specificity order, narrowed by a
// first-segment index once enough routes are registered.
func (rc *RouteCompiler) MatchDynamic(method, path string, sink ParamSink) *CompiledRoute {
	rc.mu.RLock()

	if !rc.hasFirstSegmentIndex && len(rc.dynamicRoutes) > minRoutesForIndexing {
		rc.mu.RUnlock()
		rc.buildFirstSegmentIndex()
		rc.mu.RLock()
	}

	if rc.hasFirstSegmentIndex && len(path) > 1 {
		firstChar := path[1]
		if firstChar < 128 {
			candidates := rc.firstSegmentIndex[firstChar]
			for _, route := range candidates {
				if route.Method == method && route.matchAndExtract(path, sink) {
					rc.mu.RUnlock()
					return route
				}
			}
			rc.mu.RUnlock()
			return nil
		}
	}

	for _, route := range rc.dynamicRoutes {
		if route.Method == method && route.matchAndExtract(path, sink) {
			rc.mu.RUnlock()
			return route
		}
	}

	rc.mu.RUnlock()
	return nil
}

// buildFirstSegmentIndex groups dynamic routes by the first byte of their
// first path segment (ASCII only — non-ASCII routes always fall back to the
// linear scan, which is correct, just not narrowed).
func (rc *RouteCompiler) buildFirstSegmentIndex() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for i := range rc.firstSegmentIndex {
		rc.firstSegmentIndex[i] = nil
	}

	for _, route := range rc.dynamicRoutes {
		pattern := route.Pattern
		if len(pattern) > 1 && pattern[0] == '/' {
			firstChar := pattern[1]
			if firstChar == ':' || firstChar == '*' {
				// A param or wildcard first segment matches any first
				// byte, so the route goes into every bucket.
				for c := range rc.firstSegmentIndex {
					rc.firstSegmentIndex[c] = append(rc.firstSegmentIndex[c], route)
				}
			} else if firstChar < 128 {
				rc.firstSegmentIndex[firstChar] = append(rc.firstSegmentIndex[firstChar], route)
			}
		}
	}

	rc.hasFirstSegmentIndex = true
}

// matchAndExtract checks path against this route's static segments and, on
// success, writes its parameters into sink. Per spec.md §4.2, the
// dispatcher itself only fast-matches the literal prefix before the first
// ":"; this is the trampoline-facing full segmentation and binding step
// (spec.md §4.5 steps 3-4) pulled forward into the match itself since a Go
// segment split is cheap enough to do once.
func (r *CompiledRoute) matchAndExtract(path string, sink ParamSink) bool {
	if r.segmentCount == 0 {
		return path == "/" || path == ""
	}

	pathLen := len(path)
	minLen := int(r.segmentCount) + int(r.segmentCount-1)
	if !r.hasWildcard && pathLen < minLen {
		return false
	}

	segments := splitSegments(path)

	if r.hasWildcard {
		return r.matchWildcard(segments, sink)
	}

	if int32(len(segments)) != r.segmentCount {
		return false
	}

	for i, pos := range r.staticPos {
		if int(pos) >= len(segments) || segments[pos] != r.staticSegments[i] {
			return false
		}
	}

	for i, pos := range r.paramPos {
		if int(pos) >= len(segments) {
			return false
		}
		value := segments[pos]
		if i < len(r.constraints) && r.constraints[i] != nil && !r.constraints[i].MatchString(value) {
			return false
		}
		sink.SetParam(r.paramNames[i], value)
	}

	return true
}

// matchWildcard handles a route whose final segment is "*": every leading
// segment up to the wildcard must match exactly (static or param), and
// everything from the wildcard position onward (greedy) is accepted —
// spec.md §4.2: "'*' greedy segment is last resort."
func (r *CompiledRoute) matchWildcard(segments []string, sink ParamSink) bool {
	fixed := int(r.segmentCount) - 1
	if len(segments) < fixed {
		return false
	}

	for i, pos := range r.staticPos {
		if int(pos) >= fixed || segments[pos] != r.staticSegments[i] {
			return false
		}
	}
	for i, pos := range r.paramPos {
		if int(pos) >= fixed {
			return false
		}
		value := segments[pos]
		if i < len(r.constraints) && r.constraints[i] != nil && !r.constraints[i].MatchString(value) {
			return false
		}
		sink.SetParam(r.paramNames[i], value)
	}

	tail := ""
	if fixed < len(segments) {
		tail = joinSegments(segments[fixed:])
	}
	sink.SetParam("*", tail)
	return true
}

func joinSegments(segs []string) string {
	total := len(segs) - 1
	for _, s := range segs {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for i, s := range segs {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, s...)
	}
	return string(buf)
}
