package netloop

import (
	"net"
	"sync"
)

// limitListener bounds the number of simultaneously open connections a
// listener will hand out, the Go realization of spec.md §3's MAX_FD-sized
// connection table: once max is reached, Accept blocks (not errors) until
// a slot frees, so the kernel's own accept backlog absorbs the overflow
// instead of the server refusing connections outright.
type limitListener struct {
	net.Listener
	sem chan struct{}
}

// newLimitListener wraps ln so at most max connections are accepted
// concurrently. max <= 0 means unbounded.
func newLimitListener(ln net.Listener, max int) net.Listener {
	if max <= 0 {
		return ln
	}
	return &limitListener{Listener: ln, sem: make(chan struct{}, max)}
}

func (l *limitListener) Accept() (net.Conn, error) {
	l.sem <- struct{}{}
	conn, err := l.Listener.Accept()
	if err != nil {
		<-l.sem
		return nil, err
	}
	return &trackedConn{Conn: conn, release: func() { <-l.sem }}, nil
}

// trackedConn releases its listener slot exactly once, on Close, no matter
// how many times Close is called (http.Server may call it more than once
// during shutdown races).
type trackedConn struct {
	net.Conn
	release func()
	once    sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(c.release)
	return c.Conn.Close()
}
