package hypersonic

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hypersonic-dev/hypersonic/internal/herrors"
	"github.com/hypersonic-dev/hypersonic/internal/netloop"
	"github.com/hypersonic-dev/hypersonic/internal/specialize"
	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
	"github.com/hypersonic-dev/hypersonic/internal/wsadapter"
)

// Server is the root public API: route registration methods, Compile, and
// Run, modeled on the teacher's router.Router / app.App construction idiom
// (functional Option, New/MustNew, method-per-verb registration).
type Server struct {
	cfg *config

	mu               sync.Mutex
	defs             []specialize.RouteDef
	globalBefore     []trampoline.BeforeFunc
	globalAfter      []trampoline.AfterFunc
	inlineMiddleware []trampoline.InlineMiddleware

	spec     *specialize.Specialization
	compiled bool
}

// New constructs a Server. Configuration is validated synchronously; an
// invalid option combination returns a *herrors.ConfigError and starts no
// server, per spec.md §7.
func New(opts ...Option) (*Server, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.tls && (cfg.certFile == "" || cfg.keyFile == "") {
		return nil, &herrors.ConfigError{Option: "tls", Reason: "WithTLS requires both a cert file and a key file"}
	}
	if cfg.tls && cfg.http2 {
		return nil, &herrors.ConfigError{Option: "h2c", Reason: "h2c (cleartext HTTP/2) is redundant with TLS, which already negotiates HTTP/2 via ALPN"}
	}
	if cfg.workers < 1 {
		return nil, &herrors.ConfigError{Option: "workers", Reason: "must be at least 1"}
	}

	return &Server{cfg: cfg}, nil
}

// MustNew is New but panics on error, for callers that treat a
// misconfigured server as a startup-time fatal error (matching the
// teacher's router.MustNew / app.MustNew).
func MustNew(opts ...Option) *Server {
	s, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Addr reports the configured listen address ("host:port").
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.host, s.cfg.port)
}

func (s *Server) registerRoute(method, pattern string, handler trampoline.HandlerFunc, opts []RouteOption) error {
	if pattern == "" || pattern[0] != '/' {
		return herrors.InvalidPathError(method, pattern, "path must start with \"/\"")
	}

	cfg := resolveRouteConfig(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled {
		return &herrors.CompileError{Method: method, Pattern: pattern, Reason: "route registered after Compile"}
	}

	s.defs = append(s.defs, specialize.RouteDef{
		Method:       method,
		Pattern:      pattern,
		Handler:      handler,
		Before:       cfg.before,
		After:        cfg.after,
		Constraints:  cfg.constraints,
		Flags:        cfg.flags,
		ForceDynamic: cfg.forceDynamic,
	})
	return nil
}

// GET, POST, PUT, DELETE, PATCH, HEAD, and OPTIONS register a handler for
// the given method and path template (literal segments and ":name"
// placeholders, optional "*" tail).
func (s *Server) GET(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodGet, pattern, handler, opts)
}

func (s *Server) POST(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodPost, pattern, handler, opts)
}

func (s *Server) PUT(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodPut, pattern, handler, opts)
}

func (s *Server) DELETE(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodDelete, pattern, handler, opts)
}

func (s *Server) PATCH(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodPatch, pattern, handler, opts)
}

func (s *Server) HEAD(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodHead, pattern, handler, opts)
}

func (s *Server) OPTIONS(pattern string, handler trampoline.HandlerFunc, opts ...RouteOption) error {
	return s.registerRoute(http.MethodOptions, pattern, handler, opts)
}

// Before registers global before-middleware, run ahead of every route's own
// before-middleware.
func (s *Server) Before(fns ...trampoline.BeforeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalBefore = append(s.globalBefore, fns...)
}

// After registers global after-middleware, run after every route's own
// after-middleware.
func (s *Server) After(fns ...trampoline.AfterFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalAfter = append(s.globalAfter, fns...)
}

// UseInline registers native-builder middleware (spec.md §4.1's
// "native-builder" classification): its Before/After hooks sandwich the
// whole callable before/handler/after chain instead of being invoked
// through it.
func (s *Server) UseInline(mw trampoline.InlineMiddleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inlineMiddleware = append(s.inlineMiddleware, mw)
}

// WebSocket registers a route that, instead of running the trampoline,
// upgrades the connection and hands it to handler for the rest of its
// lifetime (spec.md §1's "opaque sink"; see internal/wsadapter).
func (s *Server) WebSocket(pattern string, handler wsadapter.WSHandler, opts ...RouteOption) error {
	adapter := &wsadapter.Adapter{}
	wrapped := func(req *trampoline.Request) (any, error) {
		return nil, nil
	}
	opts = append(opts, WithFlags(specialize.FlagWebSocket), WithForceDynamic())

	if err := s.registerRoute(http.MethodGet, pattern, wrapped, opts); err != nil {
		return err
	}

	s.mu.Lock()
	idx := len(s.defs) - 1
	s.defs[idx].Handler = wsRouteHandler(adapter, handler)
	s.mu.Unlock()
	return nil
}

// responseWriterSink is satisfied by trampoline.HTTPSink; the type
// assertion lets wsRouteHandler recover the raw http.ResponseWriter (and
// with it, the http.Hijacker the upgrade needs) without the trampoline
// package's narrower ResponseSink contract having to grow a WriteHeader
// signature compatible with http.ResponseWriter itself.
type responseWriterSink interface {
	ResponseWriter() http.ResponseWriter
}

// wsRouteHandler adapts a WSHandler into a trampoline.HandlerFunc. The
// upgrade needs the raw *http.ResponseWriter (for its Hijacker), which it
// recovers from the request's sink; specialize.go attaches one to every
// request. Once the upgrade succeeds the connection has been hijacked, so
// ServeHTTP must not write a response for this route afterward — it checks
// the route's FlagWebSocket before calling WriteResponse.
func wsRouteHandler(adapter *wsadapter.Adapter, handler wsadapter.WSHandler) trampoline.HandlerFunc {
	return func(req *trampoline.Request) (any, error) {
		sink := req.Sink()
		if sink == nil {
			return nil, fmt.Errorf("hypersonic: websocket route requires a streaming-capable sink")
		}
		rws, ok := sink.(responseWriterSink)
		if !ok {
			return nil, fmt.Errorf("hypersonic: websocket route requires an http.ResponseWriter-backed sink")
		}
		if err := adapter.Upgrade(rws.ResponseWriter(), req.Raw, handler); err != nil {
			return nil, err
		}
		return trampoline.Rendered{Status: http.StatusSwitchingProtocols}, nil
	}
}

// Compile runs the Route Analyzer + Code Generator + Native Build Driver
// pipeline (spec.md §4.1-§4.3) over the registered routes. Must be called
// before Run; registering a route after Compile returns a *herrors.CompileError.
func (s *Server) Compile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled {
		return nil
	}

	// A nil *metrics.Metrics assigned directly to the Recorder interface
	// would produce a non-nil interface wrapping a nil pointer, so
	// specialize's "s.recorder != nil" check would wrongly treat metrics as
	// enabled and panic on the first RecordRequest call; only assign when a
	// *metrics.Metrics actually exists.
	var recorder specialize.Recorder
	if s.cfg.metrics != nil {
		recorder = s.cfg.metrics
	}

	spec, err := specialize.Compile(s.defs, specialize.Options{
		TLS:                s.cfg.tls,
		SecurityOptions:    s.cfg.securityOptions,
		CompressionOptions: s.cfg.compressionOptions,
		RecoveryOptions:    s.cfg.recoveryOptions,
		MaxBodySize:        s.cfg.maxRequestSize,
		GlobalBefore:       s.globalBefore,
		GlobalAfter:        s.globalAfter,
		InlineMiddleware:   s.inlineMiddleware,
		BloomSize:          s.cfg.bloomFilterSize,
		BloomHashFuncs:     s.cfg.bloomHashFunctions,
		AsyncPoolSize:      s.cfg.asyncPoolSize,
		AsyncPoolQueue:     s.cfg.asyncPoolQueue,
		Recorder:           recorder,
	})
	if err != nil {
		return err
	}

	s.spec = spec
	s.compiled = true
	return nil
}

// Handler returns the compiled Specialization as an http.Handler, mainly
// useful for tests that want to drive the server with httptest without
// opening a real socket.
func (s *Server) Handler() (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.compiled {
		return nil, &herrors.CompileError{Reason: "Compile must be called before Handler"}
	}
	if s.cfg.http2 {
		return h2c.NewHandler(s.spec, &http2.Server{}), nil
	}
	return s.spec, nil
}

// MetricsHandler returns the Prometheus scrape handler and whether metrics
// are enabled at all (WithMetrics was used). Callers that disabled the
// dedicated metrics server via WithMetricsServerDisabled mount this on
// their own mux instead, matching the teacher's GetMetricsHandler escape
// hatch.
func (s *Server) MetricsHandler() (http.Handler, bool) {
	if s.cfg.metrics == nil {
		return nil, false
	}
	return s.cfg.metrics.Handler(), true
}

// Run starts cfg.workers event-loop workers and blocks until ctx is
// canceled and every worker has finished graceful shutdown. Callers
// typically derive ctx from signal.NotifyContext so SIGTERM/SIGINT trigger
// the shutdown spec.md §4.4 describes.
func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	defer s.spec.Close()

	if s.cfg.metrics != nil && s.cfg.metricsAutoStart {
		stop := s.runMetricsServer(ctx)
		defer stop()
	}

	// See the identical nil-interface note in Compile: only assign when a
	// *metrics.Metrics actually exists.
	var connCounter netloop.ConnCounter
	if s.cfg.metrics != nil {
		connCounter = s.cfg.metrics
	}

	if s.cfg.tls {
		return s.runTLS(ctx, handler)
	}

	return netloop.Run(ctx, netloop.PoolConfig{
		Workers:           s.cfg.workers,
		Addr:              s.Addr(),
		Handler:           handler,
		Logger:            s.cfg.logger,
		ReadTimeout:       s.cfg.readTimeout,
		WriteTimeout:      s.cfg.writeTimeout,
		IdleTimeout:       s.cfg.keepAliveTimeout,
		ReadHeaderTimeout: s.cfg.readHeaderTimeout,
		MaxHeaderBytes:    s.cfg.maxHeaderBytes,
		ShutdownTimeout:   s.cfg.shutdownTimeout,
		MaxConnections:    s.cfg.maxConnections,
		ConnCounter:       connCounter,
	})
}

// runMetricsServer starts the dedicated Prometheus scrape server (teacher's
// "Prometheus metrics will be served on :9090/metrics" default) and returns
// a stop function that shuts it down with the same grace period Run gives
// the main listener. Errors from this server are logged, not returned —
// losing the scrape endpoint should never take the main listener down with
// it.
func (s *Server) runMetricsServer(ctx context.Context) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.metricsPath, s.cfg.metrics.Handler())
	server := &http.Server{Addr: s.cfg.metricsAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.cfg.logger.Error("metrics server failed", "addr", s.cfg.metricsAddr, "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// runTLS serves HTTPS directly via *http.Server.ListenAndServeTLS; TLS gets
// HTTP/2 automatically over ALPN, matching the teacher's ServeTLS. The
// netloop.Worker fleet is for the cleartext path's SO_REUSEPORT
// multi-worker model — TLS session state is not something multiple
// independently-bound listeners can share, so a TLS server always runs as
// a single *http.Server regardless of cfg.workers.
func (s *Server) runTLS(ctx context.Context, handler http.Handler) error {
	server := &http.Server{
		Addr:              s.Addr(),
		Handler:           handler,
		ReadTimeout:       s.cfg.readTimeout,
		WriteTimeout:      s.cfg.writeTimeout,
		IdleTimeout:       s.cfg.keepAliveTimeout,
		ReadHeaderTimeout: s.cfg.readHeaderTimeout,
		MaxHeaderBytes:    s.cfg.maxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServeTLS(s.cfg.certFile, s.cfg.keyFile); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
