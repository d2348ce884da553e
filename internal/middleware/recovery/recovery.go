// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package recovery

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
)

// Handler builds a custom error response for a recovered panic. err is the
// recovered value, exactly as panic() received it.
type Handler func(req *trampoline.Request, err any) trampoline.Rendered

// Option configures a Recovery.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	handler    Handler
	stackTrace bool
	stackSize  int
}

func defaultConfig() *config {
	return &config{
		stackTrace: true,
		stackSize:  4 << 10,
	}
}

// WithoutLogging disables panic logging.
func WithoutLogging() Option {
	return func(cfg *config) { cfg.logger = nil }
}

// WithLogger sets the logger panics are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithHandler overrides the response sent for a recovered panic. Without
// one, Recovery sends the same fixed 500 body spec.md §4.5 specifies for a
// handler error return.
func WithHandler(handler Handler) Option {
	return func(cfg *config) { cfg.handler = handler }
}

// WithStackTrace enables or disables stack trace capture. Default: true.
func WithStackTrace(enabled bool) Option {
	return func(cfg *config) { cfg.stackTrace = enabled }
}

// WithStackSize sets the maximum captured stack trace size in bytes.
// Default: 4KB.
func WithStackSize(size int) Option {
	return func(cfg *config) { cfg.stackSize = size }
}

// Recovery is the panic boundary the trampoline wraps around every handler
// invocation (spec.md §4.5 step 9: "an uncaught panic is equivalent to a
// handler error return — fixed 500 response, connection closed").
type Recovery struct {
	cfg *config
}

// Build resolves opts into a Recovery.
func Build(opts ...Option) *Recovery {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Recovery{cfg: cfg}
}

// Protect runs fn, converting any panic into a Rendered response instead of
// letting it unwind into the connection's goroutine (which would otherwise
// kill just that goroutine, per net/http's own per-connection recover, but
// skip running any after-middleware and leave the client with a truncated
// response).
func (rc *Recovery) Protect(req *trampoline.Request, fn func() trampoline.Rendered) (rendered trampoline.Rendered) {
	defer func() {
		if v := recover(); v != nil {
			rc.logPanic(req, v)
			if rc.cfg.handler != nil {
				rendered = rc.cfg.handler(req, v)
				return
			}
			rendered = trampoline.Rendered{
				Status:  http.StatusInternalServerError,
				Headers: http.Header{"Connection": []string{"close"}},
				Body:    []byte("Internal Server Error"),
			}
		}
	}()
	return fn()
}

func (rc *Recovery) logPanic(req *trampoline.Request, v any) {
	if rc.cfg.logger == nil {
		return
	}
	attrs := []any{"panic", fmt.Sprint(v)}
	if req != nil {
		attrs = append(attrs, "method", req.Method, "path", req.Path)
	}
	if rc.cfg.stackTrace {
		buf := make([]byte, rc.cfg.stackSize)
		n := runtime.Stack(buf, false)
		attrs = append(attrs, "stack", string(buf[:n]))
	}
	rc.cfg.logger.Error("recovered panic", attrs...)
}
