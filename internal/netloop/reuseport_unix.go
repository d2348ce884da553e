//go:build unix

package netloop

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePortControl is the net.ListenConfig.Control callback that sets
// SO_REUSEPORT on the raw socket before bind(2), letting multiple Workers
// share one address. Set on every candidate fd the runtime offers, per
// net.ListenConfig.Control's documented contract.
func reusePortControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
