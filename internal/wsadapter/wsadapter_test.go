package wsadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUpgradeRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, IsUpgradeRequest(r))

	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	assert.True(t, IsUpgradeRequest(r))
}

func TestAdapter_UpgradeEchoesTextFrames(t *testing.T) {
	received := make(chan string, 1)
	adapter := &Adapter{HandshakeTimeout: time.Second}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := adapter.Upgrade(w, r, HandlerFunc(func(conn *Conn) {
			conn.TextHandler = func(text string) error {
				received <- text
				return conn.WriteText("echo:" + text)
			}
		}))
		assert.NoError(t, err)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	dialer := websocket.Dialer{HandshakeTimeout: time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	select {
	case text := <-received:
		assert.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("server never received the frame")
	}

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", string(data))
}

func TestAdapter_DispatchesBinaryFrames(t *testing.T) {
	received := make(chan []byte, 1)
	adapter := &Adapter{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adapter.Upgrade(w, r, HandlerFunc(func(conn *Conn) {
			conn.BinaryHandler = func(b []byte) error {
				received <- b
				return nil
			}
		}))
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	select {
	case data := <-received:
		assert.Equal(t, []byte{1, 2, 3}, data)
	case <-time.After(time.Second):
		t.Fatal("server never received the binary frame")
	}
}

func TestAdapter_ConnectionCloseHandlerFires(t *testing.T) {
	closedCh := make(chan struct{})
	adapter := &Adapter{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adapter.Upgrade(w, r, HandlerFunc(func(conn *Conn) {
			conn.ConnectionCloseHandler = func(status int, reason string) error {
				close(closedCh)
				return nil
			}
		}))
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("close handler never fired")
	}
}
