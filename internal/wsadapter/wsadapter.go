// Package wsadapter wires WebSocket upgrade handling into Hypersonic.
// spec.md §1 and §6 keep frame handling itself an external collaborator —
// the loop only detects the upgrade and hands the connection off through an
// opaque sink. WSHandler is that sink's interface; Adapter is its reference
// implementation, grounded on aofei-air/response.go's Response.WebSocket and
// aofei-air/websocket.go's WebSocket peer type, both built on
// github.com/gorilla/websocket.
package wsadapter

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSHandler is the opaque sink spec.md's upgrade path hands a switched
// connection to. Serve owns the connection for its lifetime; the loop does
// not read or write to it again once Serve is called.
type WSHandler interface {
	Serve(conn *Conn)
}

// HandlerFunc adapts a plain function to a WSHandler.
type HandlerFunc func(conn *Conn)

func (f HandlerFunc) Serve(conn *Conn) { f(conn) }

// Conn is a WebSocket peer, the Go analogue of aofei-air's WebSocket type:
// callback fields for the frame types a caller cares about, write methods
// for the rest. TextHandler/BinaryHandler are invoked by ReadLoop; the
// Ping/Pong/Close handlers are wired into the underlying gorilla/websocket
// connection at Upgrade time and only need overriding for non-default
// behavior.
type Conn struct {
	TextHandler            func(text string) error
	BinaryHandler          func(b []byte) error
	ConnectionCloseHandler func(statusCode int, reason string) error
	PingHandler            func(appData string) error
	PongHandler            func(appData string) error
	ErrorHandler           func(err error)

	conn   *websocket.Conn
	closed bool
}

// Close closes the connection without sending or waiting for a close
// message.
func (c *Conn) Close() error {
	c.closed = true
	return c.conn.Close()
}

// Closed reports whether Close has been called or the peer has sent a close
// frame. Sending a close frame with WriteConnectionClose does not set it.
func (c *Conn) Closed() bool { return c.closed }

func (c *Conn) WriteText(text string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *Conn) WriteBinary(b []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (c *Conn) WriteConnectionClose(statusCode int, reason string) error {
	return c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(statusCode, reason))
}

func (c *Conn) WritePing(appData string) error {
	return c.conn.WriteMessage(websocket.PingMessage, []byte(appData))
}

func (c *Conn) WritePong(appData string) error {
	return c.conn.WriteMessage(websocket.PongMessage, []byte(appData))
}

// ReadLoop blocks reading frames until the connection closes or fails,
// dispatching text/binary frames to TextHandler/BinaryHandler. Control
// frames (ping/pong/close) are handled by the gorilla/websocket connection
// itself via the handlers registered at Upgrade time; ReadLoop only needs
// to keep calling ReadMessage to pump them through.
func (c *Conn) ReadLoop() error {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ErrorHandler != nil && !c.closed {
				c.ErrorHandler(err)
			}
			return err
		}
		switch messageType {
		case websocket.TextMessage:
			if c.TextHandler != nil {
				if err := c.TextHandler(string(data)); err != nil {
					return err
				}
			}
		case websocket.BinaryMessage:
			if c.BinaryHandler != nil {
				if err := c.BinaryHandler(data); err != nil {
					return err
				}
			}
		}
	}
}

// Adapter upgrades an HTTP request to WebSocket and dispatches it to a
// WSHandler. HandshakeTimeout/Subprotocols mirror the server-wide options
// spec.md §1 exposes for the WebSocket route flavor.
type Adapter struct {
	HandshakeTimeout time.Duration
	Subprotocols     []string
	CheckOrigin      func(r *http.Request) bool
}

// Upgrade switches w/r to the WebSocket protocol and, on success, runs
// handler.Serve(conn) followed by conn.ReadLoop() on the caller's
// goroutine — the handoff spec.md describes as giving the connection to an
// opaque sink for the rest of its lifetime.
func (a *Adapter) Upgrade(w http.ResponseWriter, r *http.Request, handler WSHandler) error {
	checkOrigin := a.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	upgrader := &websocket.Upgrader{
		HandshakeTimeout: a.HandshakeTimeout,
		Subprotocols:     a.Subprotocols,
		CheckOrigin:      checkOrigin,
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := &Conn{conn: raw}

	raw.SetCloseHandler(func(status int, reason string) error {
		conn.closed = true
		if conn.ConnectionCloseHandler != nil {
			return conn.ConnectionCloseHandler(status, reason)
		}
		raw.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(status, ""), time.Now().Add(time.Second))
		return nil
	})

	raw.SetPingHandler(func(appData string) error {
		if conn.PingHandler != nil {
			return conn.PingHandler(appData)
		}
		err := raw.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Temporary() {
			return nil
		}
		return err
	})

	raw.SetPongHandler(func(appData string) error {
		if conn.PongHandler != nil {
			return conn.PongHandler(appData)
		}
		return nil
	})

	handler.Serve(conn)
	return conn.ReadLoop()
}

// IsUpgradeRequest reports whether r carries the Connection/Upgrade headers
// that signal a WebSocket handshake, the detection spec.md §3/§6 require
// the loop to perform before routing to the WebSocket code path.
func IsUpgradeRequest(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}
