package netloop

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// PoolConfig configures a fleet of Workers bound to the same address.
type PoolConfig struct {
	Workers int
	Addr    string
	Handler http.Handler
	Logger  *slog.Logger

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
	MaxConnections    int

	ConnCounter ConnCounter
}

// Run starts cfg.Workers goroutine-workers and blocks until ctx is
// canceled and every worker has finished its graceful shutdown, or any
// worker returns a fatal error (in which case ctx's sibling workers are
// left running only as long as ctx stays live — callers should derive ctx
// from a cancel they also trigger on the first error; Run itself returns
// as soon as it has joined every worker).
//
// A single worker uses DefaultBackend (one listener, no port sharing); two
// or more use ReusePortBackend so the kernel balances accept() across them
// — the Go analogue of spec.md's run(port, workers) forking workers-1
// children.
func Run(ctx context.Context, cfg PoolConfig) error {
	n := cfg.Workers
	if n <= 0 {
		n = 1
	}

	backend := DefaultBackend()
	if n > 1 {
		backend = ReusePortBackend()
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		worker := &Worker{
			ID:                i,
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			Backend:           backend,
			Logger:            cfg.Logger,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
			ShutdownTimeout:   cfg.ShutdownTimeout,
			MaxConnections:    cfg.MaxConnections,
			ConnCounter:       cfg.ConnCounter,
		}
		go func(i int) {
			defer wg.Done()
			errs[i] = worker.Serve(ctx)
		}(i)
	}

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
