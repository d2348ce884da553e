// Package trampoline implements Hypersonic's dynamic handler trampoline
// (spec.md §4.5): it builds the fixed-slot Request object, runs the
// before/after middleware sandwich, invokes the user handler, and renders
// the response.
//
// The "slot array" spec.md §3 describes (indices 0-15 reserved, 16+ for
// middleware extensions) is realized as a struct with one named field per
// reserved slot plus an Ext map for middleware-declared extensions — a
// tagged struct is the idiomatic Go encoding of a fixed-layout record, and
// SlotIndex below is the numeric identifier later-stage (inline middleware)
// code uses to reference an extension slot by index rather than by name.
package trampoline

import (
	"context"
	"net/http"
)

// SlotIndex is a middleware-extension slot identifier, stable for the
// lifetime of one Specialization. Index 0 is slot 16 in spec.md's numbering
// (the first 16 slots are the reserved fields below); Hypersonic only needs
// the identifier to be stable and unique, not literally offset by 16, so
// this type starts counting at 0 and callers needing the spec's numbering
// add 16 themselves. Nothing in this module assigns SlotIndex values: each
// middleware picks the indices it reads and writes.
type SlotIndex int

// Request is the request slot object passed to handlers and middleware.
// Field order intentionally matches spec.md §3's slot numbering in comments
// for traceability, even though Go field order has no runtime significance.
type Request struct {
	Method      string            // slot 0
	Path        string            // slot 1: path without query string
	Body        []byte            // slot 2
	Params      map[string]string // slot 3
	Query       map[string]string // slot 4
	QueryString string            // slot 5: raw, percent-encoded, empty if no "?"
	Headers     map[string]string // slot 6: lower_underscore names
	Cookies     map[string]string // slot 7
	JSON        any               // slot 8: decoded value, or nil
	Form        map[string]string // slot 9
	Segments    []string          // slot 10
	Terminal    string            // slot 11: last path segment

	// Ext holds middleware-declared extension slots (16+), keyed by the
	// SlotIndex the middleware uses for them.
	Ext map[SlotIndex]any

	// Raw is the underlying *http.Request, kept for advanced handlers
	// (streaming, WebSocket upgrade) that need access the slot object
	// does not expose. Plain handlers never need it.
	Raw *http.Request

	// sink is whatever Options.Sink BuildRequest was given (spec.md §4.5
	// step 10); whether the response is rendered is decided by the route's
	// streaming/WebSocket flags, not by the sink's presence.
	sink ResponseSink

	// offload is non-nil only when the server was built with an async pool
	// (spec.md §5 ¶2); see Offload.
	offload OffloadFunc
}

// OffloadFunc runs fn on the server's async pool and blocks until it
// completes or ctx is done — the trampoline-facing half of spec.md's
// "fixed thread pool... for offloading blocking user work" (§5 ¶2).
type OffloadFunc func(ctx context.Context, fn func(context.Context) (any, error)) (any, error)

// Offload runs fn on the server's async pool if one is configured,
// otherwise runs fn inline on the calling goroutine. Either way, the
// result is only ever observed by the goroutine that called Offload —
// spec.md's "user callbacks never run on pool threads" guarantee — since
// fn's return value is handed back synchronously, never posted to a
// shared queue another goroutine might also be reading.
func (r *Request) Offload(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if r.offload == nil {
		return fn(ctx)
	}
	return r.offload(ctx, fn)
}

// SetParam implements compiler.ParamSink so CompiledRoute.matchAndExtract
// can write directly into the params slot without an intermediate map.
func (r *Request) SetParam(name, value string) {
	if r.Params == nil {
		r.Params = make(map[string]string, 4)
	}
	r.Params[name] = value
}

// ExtSlot returns the value of an extension slot, or nil if unset.
func (r *Request) ExtSlot(idx SlotIndex) any {
	if r.Ext == nil {
		return nil
	}
	return r.Ext[idx]
}

// SetExtSlot writes a middleware extension slot.
func (r *Request) SetExtSlot(idx SlotIndex, value any) {
	if r.Ext == nil {
		r.Ext = make(map[SlotIndex]any, 1)
	}
	r.Ext[idx] = value
}

// Sink returns the streaming sink attached to this request, or nil if
// BuildRequest was given none.
func (r *Request) Sink() ResponseSink { return r.sink }

// ResponseSink is the "explicit Sink/Stream object" spec.md §9 gives to
// streaming handlers: the handler owns the write lifecycle and is
// responsible for ending it (calling Close).
type ResponseSink interface {
	// WriteHeader sends the status line and headers; it must be called
	// at most once, before any Write.
	WriteHeader(status int, headers http.Header)
	Write(p []byte) (int, error)
	Close() error
}
