package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestServer starts a gorilla/websocket server that runs handle on every
// upgraded connection.
func newTestServer(t *testing.T, handle func(c *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialTest(t *testing.T, srv *httptest.Server, token string) Conn {
	t.Helper()
	u, err := ChatURL(srv.URL, token)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := NewDialer(DialerConfig{}).Dial(ctx, u)
	require.NoError(t, err)
	return conn
}

func TestConnection_EchoRoundTrip(t *testing.T) {
	paths := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn := dialTest(t, srv, "tok/en")
	defer conn.Close()

	assert.Equal(t, "/ws/tok%2Fen", <-paths)

	require.NoError(t, conn.WriteMessage([]byte(`{"type":"ping"}`)))
	got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(got))
}

func TestConnection_AnswersControlPing(t *testing.T) {
	pongs := make(chan string, 1)
	srv := newTestServer(t, func(c *websocket.Conn) {
		c.SetPongHandler(func(data string) error {
			pongs <- data
			return nil
		})
		_ = c.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		_ = c.WriteMessage(websocket.TextMessage, []byte("after-ping"))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn := dialTest(t, srv, "alice")
	defer conn.Close()

	got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "after-ping", string(got))

	select {
	case data := <-pongs:
		assert.Equal(t, "hb", data)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received pong")
	}
}

func TestConnection_ServerCloseEndsRead(t *testing.T) {
	srv := newTestServer(t, func(c *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = c.ReadMessage()
	})

	conn := dialTest(t, srv, "alice")
	defer conn.Close()

	_, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestConnection_WriteAfterClose(t *testing.T) {
	srv := newTestServer(t, func(c *websocket.Conn) {
		_, _, _ = c.ReadMessage()
	})

	conn := dialTest(t, srv, "alice")
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.WriteMessage([]byte("x")), ErrConnClosed)
}

func TestDial_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := ChatURL(srv.URL, "secret-token")
	require.NoError(t, err)
	srv.Close()

	_, err = NewDialer(DialerConfig{HandshakeTimeout: time.Second}).Dial(context.Background(), u)
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret-token"), "token leaked into error: %v", err)
}

func TestChatURL(t *testing.T) {
	tests := []struct {
		server, token, want string
	}{
		{"http://localhost:8000", "abc", "ws://localhost:8000/ws/abc"},
		{"https://chat.example.com/", "abc", "wss://chat.example.com/ws/abc"},
		{"https://chat.example.com/api", "a b", "wss://chat.example.com/api/ws/a%20b"},
		{"ws://h:1?x=1#f", "t", "ws://h:1/ws/t"},
	}
	for _, tt := range tests {
		got, err := ChatURL(tt.server, tt.token)
		require.NoError(t, err, tt.server)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"ftp://h", "localhost:8000", "http://"} {
		_, err := ChatURL(bad, "t")
		assert.Error(t, err, bad)
	}
	_, err := ChatURL("http://h", "")
	assert.Error(t, err)
}
