//go:build !unix

package netloop

import "syscall"

// reusePortControl is a no-op on platforms without SO_REUSEPORT (Windows):
// ReusePortBackend still works, it just behaves like DefaultBackend — only
// the last bound listener on an address wins, so multi-worker deployments
// on these platforms should use one worker per process instead.
func reusePortControl(network, address string, c syscall.RawConn) error {
	return nil
}
