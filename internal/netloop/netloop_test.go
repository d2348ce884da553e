package netloop

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestWorker_ServesRequestsAndShutsDownGracefully(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	worker := &Worker{Addr: addr, Handler: handler, ShutdownTimeout: time.Second}

	done := make(chan error, 1)
	go func() { done <- worker.Serve(ctx) }()

	waitForListener(t, addr)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not shut down in time")
	}
}

func TestWorker_TracksActiveConnections(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := &Worker{Addr: addr, Handler: handler, ShutdownTimeout: time.Second}
	go worker.Serve(ctx)
	waitForListener(t, addr)

	clientDone := make(chan struct{})
	go func() {
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
		}
		close(clientDone)
	}()

	assert.Eventually(t, func() bool {
		return worker.ActiveConnections() >= 1
	}, time.Second, 10*time.Millisecond)

	close(release)
	<-clientDone
}

func TestWorker_DefersWhenAtMaxConnections(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := &Worker{Addr: addr, Handler: handler, ShutdownTimeout: time.Second, MaxConnections: 1}
	go worker.Serve(ctx)
	waitForListener(t, addr)

	firstDone := make(chan struct{})
	go func() {
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
		}
		close(firstDone)
	}()

	assert.Eventually(t, func() bool {
		return worker.ActiveConnections() >= 1
	}, time.Second, 10*time.Millisecond)

	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	_, readErr := conn.Read(buf)
	assert.Error(t, readErr, "second connection should not be accepted while the first holds the only slot")

	close(release)
	<-firstDone
}

func TestDefaultBackend_Name(t *testing.T) {
	assert.Equal(t, "goruntime", DefaultBackend().Name())
}

func TestReusePortBackend_Name(t *testing.T) {
	assert.Equal(t, "goruntime+reuseport", ReusePortBackend().Name())
}

func TestReusePortBackend_MultipleListenersShareAddress(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	backend := ReusePortBackend()

	ln1, err := backend.Listen(context.Background(), "tcp", addr)
	require.NoError(t, err)
	defer ln1.Close()

	ln2, err := backend.Listen(context.Background(), "tcp", addr)
	require.NoError(t, err)
	defer ln2.Close()
}

func TestRun_SingleWorkerServesAndStops(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, PoolConfig{Workers: 1, Addr: addr, Handler: handler, ShutdownTimeout: time.Second})
	}()

	waitForListener(t, addr)
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not shut down in time")
	}
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener at %s never came up", addr)
}
