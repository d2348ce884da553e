package trampoline

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Options bounds how much of a request BuildRequest is willing to buffer,
// mirroring spec.md §6's max_request_size server option.
type Options struct {
	MaxBodySize int64

	// Sink, when set, is attached to the built Request so a streaming or
	// WebSocket handler can reach the underlying connection (spec.md §4.5
	// step 10's streaming opt-in / §6's WebSocket handoff). The dispatcher
	// in internal/specialize sets it for every request; handlers of
	// non-streaming routes simply do not use it.
	Sink ResponseSink

	// Offload, when set, is attached to the built Request so a handler can
	// run blocking work on the server's async pool (spec.md §5 ¶2).
	Offload OffloadFunc
}

// BuildRequest populates the slot object from an *http.Request (spec.md
// §4.5 steps 1-6). ok is false when the request is rejected before a
// handler ever runs (oversized body, chunked transfer encoding); in that
// case rejected holds the 400 response to write.
//
// HTTP/1.1 framing (request line, header parsing, keep-alive) is handled
// by net/http.Server upstream of this call — Hypersonic's "protocol codec"
// is net/http itself (SPEC_FULL.md §2); this function only re-derives the
// slot-object views (normalized headers, decoded query/form/json) spec.md
// requires on top of what net/http already parsed.
func BuildRequest(hr *http.Request, opts Options) (req *Request, rejected Rendered, ok bool) {
	// spec.md §9: Content-Length and chunked transfer disagreement is
	// resolved in favor of Content-Length; a chunked body with no
	// Content-Length is rejected outright rather than guessed at.
	if hr.ContentLength < 0 {
		return nil, BadRequest("chunked request bodies are not supported"), false
	}

	req = &Request{
		Method:  hr.Method,
		Path:    hr.URL.Path,
		Raw:     hr,
		sink:    opts.Sink,
		offload: opts.Offload,
	}

	req.Segments = splitPathSegments(hr.URL.Path)
	if len(req.Segments) > 0 {
		req.Terminal = req.Segments[len(req.Segments)-1]
	}

	req.QueryString = hr.URL.RawQuery
	if req.QueryString != "" {
		values, err := url.ParseQuery(req.QueryString)
		if err != nil {
			return nil, BadRequest("malformed query string"), false
		}
		req.Query = firstValues(values)
	}

	req.Headers = normalizeHeaders(hr.Header)

	if cookies := hr.Cookies(); len(cookies) > 0 {
		req.Cookies = make(map[string]string, len(cookies))
		for _, c := range cookies {
			req.Cookies[c.Name] = c.Value
		}
	}

	if hr.ContentLength > 0 {
		limit := opts.MaxBodySize
		if limit <= 0 {
			limit = 1 << 20 // 1 MiB default, matches spec.md's suggested default
		}
		body, err := io.ReadAll(http.MaxBytesReader(nil, hr.Body, limit))
		if err != nil {
			return nil, BadRequest("request body exceeds max_request_size"), false
		}
		req.Body = body

		contentType, _, _ := mime.ParseMediaType(hr.Header.Get("Content-Type"))
		switch contentType {
		case "application/json":
			var decoded any
			if err := json.Unmarshal(body, &decoded); err == nil {
				req.JSON = decoded
			}
		case "application/x-www-form-urlencoded":
			if form, err := url.ParseQuery(string(body)); err == nil {
				req.Form = firstValues(form)
			}
		}
	}

	return req, Rendered{}, true
}

// splitPathSegments splits a request path on "/" after trimming leading and
// trailing slashes. Unlike internal/compiler.splitSegments, it keeps empty
// segments produced by repeated slashes ("/a//b" gives "a", "", "b").
func splitPathSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// normalizeHeaders lowercases and underscore-joins header names (spec.md
// §3's "slot 6: headers, keys normalized to lower_underscore form") and
// keeps only the first value per name, matching the trampoline's
// single-value Query/Form/Cookies slots.
func normalizeHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		out[strings.ReplaceAll(strings.ToLower(k), "-", "_")] = v[0]
	}
	return out
}

func firstValues(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// WriteResponse writes a Rendered response to the wire, computing
// Content-Length from the final (possibly middleware-rewritten) body —
// spec.md §4.5 step 11 forbids trusting any Content-Length a handler set
// itself.
func WriteResponse(w http.ResponseWriter, r Rendered) {
	header := w.Header()
	for k, values := range r.Headers {
		header[k] = values
	}
	header.Set("Content-Length", itoa(len(r.Body)))

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
