// Package netloop is Hypersonic's generated event loop (spec.md §4.4): it
// owns the listen socket(s), accept loop, per-connection bookkeeping,
// keep-alive behavior, and graceful shutdown, then hands each request to a
// Specialization's Dispatch.
//
// The spec's pluggable "Readiness Backend Adaptor" (io_uring > epoll >
// kqueue > poll, selected by a link probe) collapses here to the Go
// runtime's own netpoller, which already multiplexes epoll/kqueue/IOCP
// under net.Listener/net.Conn — see SPEC_FULL.md §4.6. The Backend
// interface is kept anyway (grounded on internal/compiler's "define the
// interface independent of its implementation" pattern) so a future
// alternate backend doesn't need to change Worker's contract.
package netloop

import (
	"context"
	"net"
)

// Backend creates listeners for a Worker. The default implementation is a
// thin wrapper over net.ListenConfig; a SO_REUSEPORT-enabled backend lets
// multiple Workers each bind the same address so the kernel load-balances
// accept() across them — the Go analogue of spec.md's fork(2)-per-worker
// model (see SPEC_FULL.md §4.4's worker-model resolution).
type Backend interface {
	Listen(ctx context.Context, network, address string) (net.Listener, error)
	// Name reports the backend identity for diagnostics, mirroring
	// spec.md §4.6's BackendName().
	Name() string
}

// goruntimeBackend is the default Backend: one net.Listener per address,
// no port sharing. Fine for a single-worker server.
type goruntimeBackend struct{}

func (goruntimeBackend) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, network, address)
}

func (goruntimeBackend) Name() string { return "goruntime" }

// DefaultBackend is the single-listener backend used when a server runs
// with one worker.
func DefaultBackend() Backend { return goruntimeBackend{} }

// reuseportBackend binds SO_REUSEPORT so N workers can each Listen on the
// same address; the kernel distributes incoming connections across their
// accept queues. reusePortControl is platform-specific (reuseport_unix.go
// / reuseport_other.go).
type reuseportBackend struct{}

func (reuseportBackend) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reusePortControl}
	return lc.Listen(ctx, network, address)
}

func (reuseportBackend) Name() string { return "goruntime+reuseport" }

// ReusePortBackend is the multi-worker backend: every Worker created with
// it binds its own socket to the same address via SO_REUSEPORT instead of
// sharing one listener over a channel, matching spec.md's "workers-1
// children, each with its own SO_REUSEPORT listen socket."
func ReusePortBackend() Backend { return reuseportBackend{} }
