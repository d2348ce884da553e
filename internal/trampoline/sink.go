package trampoline

import "net/http"

// HTTPSink adapts a raw http.ResponseWriter to ResponseSink for streaming
// and WebSocket routes (spec.md §4.5 step 10 / §6's upgrade handoff). It is
// the only ResponseSink implementation in this repo; handlers that need the
// underlying *http.ResponseWriter itself (a WebSocket upgrade needs an
// http.Hijacker) recover it via ResponseWriter rather than through the
// narrower ResponseSink interface.
type HTTPSink struct {
	w           http.ResponseWriter
	wroteHeader bool
}

// NewHTTPSink wraps w for a streaming or WebSocket route.
func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	return &HTTPSink{w: w}
}

func (s *HTTPSink) WriteHeader(status int, headers http.Header) {
	if s.wroteHeader {
		return
	}
	h := s.w.Header()
	for k, values := range headers {
		h[k] = values
	}
	s.w.WriteHeader(status)
	s.wroteHeader = true
}

func (s *HTTPSink) Write(p []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK, nil)
	}
	return s.w.Write(p)
}

func (s *HTTPSink) Close() error { return nil }

// ResponseWriter returns the underlying http.ResponseWriter, for handlers
// (like a WebSocket upgrade) that need the full interface rather than the
// narrower ResponseSink contract.
func (s *HTTPSink) ResponseWriter() http.ResponseWriter { return s.w }
