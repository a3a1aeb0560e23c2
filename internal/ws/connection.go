// Package ws is the client side of the chat transport: a gobwas/ws connection
// with serialised writes, a heartbeat ticker and an inbound dispatcher.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ErrConnClosed is returned by writes on a connection that was closed locally.
var ErrConnClosed = errors.New("ws: connection closed")

// Conn is one live chat transport connection.
type Conn interface {
	// ReadMessage blocks until the next data frame arrives. Control frames
	// are answered internally.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error
	Close() error
}

// DialerConfig holds transport tuning parameters.
type DialerConfig struct {
	HandshakeTimeout time.Duration // max time for TCP connect + upgrade (default: 10s)
	WriteTimeout     time.Duration // deadline applied to every frame write (default: 10s)
}

// DefaultDialerConfig returns sensible defaults.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Dialer opens client connections to the chat endpoint.
type Dialer struct {
	config DialerConfig
}

// NewDialer creates a Dialer. Zero fields in config take their defaults.
func NewDialer(config DialerConfig) *Dialer {
	def := DefaultDialerConfig()
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = def.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	return &Dialer{config: config}
}

// Dial performs the WebSocket handshake with urlStr.
func (d *Dialer) Dial(ctx context.Context, urlStr string) (Conn, error) {
	dialer := ws.Dialer{Timeout: d.config.HandshakeTimeout}
	netConn, br, _, err := dialer.Dial(ctx, urlStr)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", redact(urlStr), err)
	}

	// Frames the server sent right after the handshake sit in br.
	var src io.Reader = netConn
	if br != nil {
		src = io.MultiReader(br, netConn)
	}
	return newConnection(netConn, src, d.config.WriteTimeout), nil
}

// Connection is a client WebSocket connection. Writes, including the
// automatic replies to control frames, are serialised by writeMu.
type Connection struct {
	conn         net.Conn
	reader       *wsutil.Reader
	control      wsutil.FrameHandlerFunc
	writeTimeout time.Duration

	writeMu sync.Mutex // serializes writes to this connection
	closed  bool       // guarded by writeMu
}

func newConnection(conn net.Conn, src io.Reader, writeTimeout time.Duration) *Connection {
	c := &Connection{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
	handler := wsutil.ControlFrameHandler(lockedWriter{c}, ws.StateClientSide)
	c.control = handler
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: handler,
	}
	return c
}

// ReadMessage returns the payload of the next text or binary message. Ping
// frames are answered with pongs; a close frame is echoed and surfaces as a
// wsutil.ClosedError.
func (c *Connection) ReadMessage() ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, c.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(c.reader)
	}
}

// WriteMessage sends a WebSocket text frame. The write mutex ensures that
// concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.setWriteDeadline()
	return wsutil.WriteClientMessage(c.conn, ws.OpText, data)
}

// Close sends a normal-closure frame, best effort, and closes the network
// connection. It is safe to call more than once.
func (c *Connection) Close() error {
	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return nil
	}
	c.closed = true
	c.setWriteDeadline()
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	_ = ws.WriteFrame(c.conn, ws.MaskFrameInPlace(ws.NewCloseFrame(body)))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *Connection) setWriteDeadline() {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

// lockedWriter routes control-frame replies through the connection's write
// mutex.
type lockedWriter struct {
	c *Connection
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	if w.c.closed {
		return 0, ErrConnClosed
	}
	w.c.setWriteDeadline()
	return w.c.conn.Write(p)
}

// ChatURL builds the chat endpoint for token: http becomes ws, https becomes
// wss, and the token is path-escaped under /ws/.
func ChatURL(serverURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("ws: parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("ws: unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("ws: server url %q has no host", serverURL)
	}
	if token == "" {
		return "", fmt.Errorf("ws: empty token")
	}

	base := strings.TrimRight(u.Path, "/")
	u.Path = base + "/ws/" + token
	u.RawPath = base + "/ws/" + url.PathEscape(token)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// redact hides the token path segment in log and error output.
func redact(urlStr string) string {
	if i := strings.LastIndex(urlStr, "/ws/"); i >= 0 {
		return urlStr[:i] + "/ws/***"
	}
	return urlStr
}
