package hypersonic

import (
	"log/slog"
	"time"

	"github.com/hypersonic-dev/hypersonic/internal/metrics"
	"github.com/hypersonic-dev/hypersonic/internal/middleware/compression"
	"github.com/hypersonic-dev/hypersonic/internal/middleware/recovery"
	"github.com/hypersonic-dev/hypersonic/internal/middleware/security"
)

// Option configures a Server at construction time, mirroring the teacher's
// router.Option / app.Option functional-options shape.
type Option func(*config)

type config struct {
	host string
	port int

	tls      bool
	certFile string
	keyFile  string
	http2    bool // h2c (cleartext HTTP/2); TLS gets HTTP/2 via ALPN automatically

	workers           int
	maxConnections    int
	maxRequestSize    int64
	keepAliveTimeout  time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	readHeaderTimeout time.Duration
	maxHeaderBytes    int
	shutdownTimeout   time.Duration

	cacheDir string // accepted, not yet wired to any on-disk artifact (see DESIGN.md)

	securityOptions    []security.Option
	compressionOptions []compression.Option
	recoveryOptions    []recovery.Option

	bloomFilterSize    uint64
	bloomHashFunctions int

	asyncPoolSize  int
	asyncPoolQueue int

	// metrics, when non-nil, enables Prometheus-format recording of every
	// completed request and the live connection count (spec.md §8's
	// throughput/latency/concurrency Testable Properties made externally
	// observable). See WithMetrics.
	metrics          *metrics.Metrics
	metricsAddr      string
	metricsPath      string
	metricsAutoStart bool

	logger *slog.Logger
}

func defaultConfig() *config {
	return &config{
		host:              "0.0.0.0",
		port:              8080,
		workers:           1,
		maxConnections:    0, // unbounded
		maxRequestSize:    10 << 20,
		keepAliveTimeout:  30 * time.Second,
		readTimeout:       15 * time.Second,
		writeTimeout:      15 * time.Second,
		readHeaderTimeout: 5 * time.Second,
		maxHeaderBytes:    1 << 20,
		shutdownTimeout:   15 * time.Second,
		bloomFilterSize:   8192,
		bloomHashFunctions: 3,
		metricsAddr:       ":9090",
		metricsPath:       "/metrics",
		metricsAutoStart:  true,
		logger:            slog.New(slog.DiscardHandler),
	}
}

// WithHost sets the bind address. Default: "0.0.0.0".
func WithHost(host string) Option {
	return func(c *config) { c.host = host }
}

// WithPort sets the bind port. Default: 8080.
func WithPort(port int) Option {
	return func(c *config) { c.port = port }
}

// WithTLS enables TLS using the given certificate/key files. TLS connections
// negotiate HTTP/2 automatically via ALPN.
func WithTLS(certFile, keyFile string) Option {
	return func(c *config) {
		c.tls = true
		c.certFile = certFile
		c.keyFile = keyFile
	}
}

// WithH2C enables cleartext HTTP/2 (h2c). Use only in development or behind
// a trusted load balancer that terminates TLS, mirroring the teacher's own
// WithH2C caveat.
func WithH2C(enabled bool) Option {
	return func(c *config) { c.http2 = enabled }
}

// WithWorkers sets the number of event-loop workers Run starts. More than
// one worker binds the listen address with SO_REUSEPORT so the kernel
// balances accepts across them (spec.md §4.7's "forks workers-1 children").
// Default: 1.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithMaxConnections bounds concurrent accepted connections per worker.
// 0 (default) means unbounded.
func WithMaxConnections(n int) Option {
	return func(c *config) { c.maxConnections = n }
}

// WithMaxRequestSize bounds the request body size accepted from a client.
// Default: 10MiB.
func WithMaxRequestSize(n int64) Option {
	return func(c *config) { c.maxRequestSize = n }
}

// WithKeepAliveTimeout sets how long an idle keep-alive connection is held
// open. Default: 30s.
func WithKeepAliveTimeout(d time.Duration) Option {
	return func(c *config) { c.keepAliveTimeout = d }
}

// WithReadTimeout, WithWriteTimeout, WithReadHeaderTimeout, and
// WithMaxHeaderBytes configure the underlying *http.Server the same way
// the teacher's WithServerConfig options do.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { c.writeTimeout = d }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(c *config) { c.readHeaderTimeout = d }
}

func WithMaxHeaderBytes(n int) Option {
	return func(c *config) { c.maxHeaderBytes = n }
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests to
// drain once its context is canceled. Default: 15s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) { c.shutdownTimeout = d }
}

// WithCacheDir accepts a directory for a future on-disk specialization
// dump. Not wired to any component today (there is no on-disk native
// artifact in this implementation) — see DESIGN.md.
func WithCacheDir(dir string) Option {
	return func(c *config) { c.cacheDir = dir }
}

// WithSecurityOptions configures the security-headers middleware applied to
// every response. See internal/middleware/security for available options.
func WithSecurityOptions(opts ...security.Option) Option {
	return func(c *config) { c.securityOptions = append(c.securityOptions, opts...) }
}

// WithCompressionOptions configures response gzip compression. See
// internal/middleware/compression for available options.
func WithCompressionOptions(opts ...compression.Option) Option {
	return func(c *config) { c.compressionOptions = append(c.compressionOptions, opts...) }
}

// WithRecoveryOptions configures panic recovery. See
// internal/middleware/recovery for available options.
func WithRecoveryOptions(opts ...recovery.Option) Option {
	return func(c *config) { c.recoveryOptions = append(c.recoveryOptions, opts...) }
}

// WithBloomFilterSize and WithBloomFilterHashFunctions tune the static-route
// bloom filter sizing (internal/compiler). Defaults: 8192 bits, 3 functions.
func WithBloomFilterSize(size uint64) Option {
	return func(c *config) { c.bloomFilterSize = size }
}

func WithBloomFilterHashFunctions(n int) Option {
	return func(c *config) { c.bloomHashFunctions = n }
}

// WithAsyncPool enables the async worker pool (spec.md §5 ¶2): size
// goroutines and a queue depth of queue, used by any handler that calls
// Request.Offload to run blocking work off its own goroutine. Disabled
// (size 0) by default — Offload then just runs inline.
func WithAsyncPool(size, queue int) Option {
	return func(c *config) {
		c.asyncPoolSize = size
		c.asyncPoolQueue = queue
	}
}

// WithMetrics enables Prometheus metrics collection, auto-configured the
// same way the teacher's router.WithMetrics defaults to an auto-started
// Prometheus exporter on its own port. serviceName becomes the "service"
// const label on every recorded metric. Default scrape address ":9090",
// default path "/metrics"; see WithMetricsAddr, WithMetricsPath, and
// WithMetricsServerDisabled to change that.
func WithMetrics(serviceName string) Option {
	return func(c *config) { c.metrics = metrics.New(serviceName) }
}

// WithMetricsAddr sets the bind address of the dedicated metrics scrape
// server Run starts alongside the main listener. Default: ":9090". Only
// takes effect when WithMetrics is also set.
func WithMetricsAddr(addr string) Option {
	return func(c *config) { c.metricsAddr = addr }
}

// WithMetricsPath sets the scrape path on the metrics server. Default:
// "/metrics".
func WithMetricsPath(path string) Option {
	return func(c *config) { c.metricsPath = path }
}

// WithMetricsServerDisabled stops Run from starting the dedicated metrics
// server; use this to mount Server.MetricsHandler on an existing mux
// instead, mirroring the teacher's WithMetricsServerDisabled +
// GetMetricsHandler pairing.
func WithMetricsServerDisabled() Option {
	return func(c *config) { c.metricsAutoStart = false }
}

// WithLogger sets the base logger used for lifecycle events (worker
// start/stop, metrics-server failures). Default: a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
