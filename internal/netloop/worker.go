package netloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Worker is one event-loop worker (spec.md §3's "process-wide state",
// realized per goroutine instead of per OS process — see SPEC_FULL.md
// §4.4). Each Worker owns exactly one listener and one *http.Server; it
// shares no mutable state with any sibling worker, so the "no locks in the
// hot path" invariant holds across the whole fleet, not just within one
// connection.
type Worker struct {
	ID      int
	Addr    string
	Handler http.Handler
	Backend Backend
	Logger  *slog.Logger

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
	MaxConnections    int

	// ConnCounter, when set, is notified of every accepted/closed
	// connection alongside the in-process active counter below — the
	// hook internal/metrics' active_connections gauge attaches through,
	// without netloop importing a metrics package of its own.
	ConnCounter ConnCounter

	active atomic.Int64
}

// ConnCounter receives connection lifecycle events. Hypersonic's
// internal/metrics.Metrics satisfies this with Inc/DecActiveConnections.
type ConnCounter interface {
	IncActiveConnections()
	DecActiveConnections()
}

// ActiveConnections reports the worker's current connection count, the
// realization of spec.md §3's "active-connection counter."
func (w *Worker) ActiveConnections() int64 { return w.active.Load() }

// Serve runs the accept/dispatch loop until ctx is canceled (spec.md §4.4's
// state machine: ACCEPTED -> READING -> DISPATCHING -> WRITING -> {READING
// | CLOSED}, which net/http.Server's own per-connection goroutine already
// implements — this method supplies the surrounding listener lifecycle,
// connection bookkeeping, and graceful shutdown spec.md requires on top).
// Grounded on the teacher's app/server.go runServer: start in a goroutine,
// select on ctx.Done() vs a serve error, then Shutdown with a fresh
// timeout context (the original ctx is already canceled by the time
// Shutdown needs to run).
func (w *Worker) Serve(ctx context.Context) error {
	backend := w.Backend
	if backend == nil {
		backend = DefaultBackend()
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ln, err := backend.Listen(ctx, "tcp", w.Addr)
	if err != nil {
		return fmt.Errorf("netloop: worker %d listen %s: %w", w.ID, w.Addr, err)
	}
	ln = newLimitListener(ln, w.MaxConnections)

	server := &http.Server{
		Handler:           w.Handler,
		ReadTimeout:       w.ReadTimeout,
		WriteTimeout:      w.WriteTimeout,
		IdleTimeout:       w.IdleTimeout,
		ReadHeaderTimeout: w.ReadHeaderTimeout,
		MaxHeaderBytes:    w.MaxHeaderBytes,
		ConnState:         w.trackConnState,
		ErrorLog:          nil,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("worker listening", "worker", w.ID, "addr", w.Addr, "backend", backend.Name())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("netloop: worker %d serve: %w", w.ID, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("worker shutting down", "worker", w.ID, "reason", ctx.Err())
	}

	shutdownTimeout := w.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("netloop: worker %d forced shutdown: %w", w.ID, err)
	}
	return <-errCh
}

// trackConnState maintains the active-connection counter (spec.md §3's
// Connection Record, minus the fd-indexed table Go doesn't expose — see
// SPEC_FULL.md §3). Conn identity is the *net.Conn value itself, which is
// stable for the connection's lifetime; no sync.Map of per-connection
// records is needed since the only state tracked is the aggregate count.
func (w *Worker) trackConnState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		w.active.Add(1)
		if w.ConnCounter != nil {
			w.ConnCounter.IncActiveConnections()
		}
	case http.StateClosed, http.StateHijacked:
		w.active.Add(-1)
		if w.ConnCounter != nil {
			w.ConnCounter.DecActiveConnections()
		}
	}
}
