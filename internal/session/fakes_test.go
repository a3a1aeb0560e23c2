package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/whisper/chat-client/internal/auth"
	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/ws"
)

// fakeConn is an in-memory transport. Frames pushed with deliver are
// returned by ReadMessage; drop simulates the server going away.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	frames [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return ws.ErrConnClosed
	default:
	}
	c.mu.Lock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(raw string) { c.in <- []byte(raw) }

func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// sent decodes every written frame.
func (c *fakeConn) sent() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]interface{}
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// sentOfType returns the written frames with the given type.
func (c *fakeConn) sentOfType(msgType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range c.sent() {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

// fakeDialer hands out a fresh fakeConn per successful dial.
type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	fail  error
}

func (d *fakeDialer) Dial(_ context.Context, url string) (ws.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail != nil {
		return nil, d.fail
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// fakeAuth issues "tok-<username>" for password "pw". When gate is set,
// Login blocks until it is closed.
type fakeAuth struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (a *fakeAuth) Register(_ context.Context, creds auth.Credentials) error {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if creds.Username == "taken" {
		return &auth.Error{Status: 400, Detail: "Username already taken"}
	}
	return nil
}

func (a *fakeAuth) Login(_ context.Context, creds auth.Credentials) (string, error) {
	a.mu.Lock()
	a.calls++
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if creds.Password != "pw" {
		return "", &auth.Error{Status: 401, Detail: "Invalid credentials"}
	}
	return "tok-" + creds.Username, nil
}

func (a *fakeAuth) hold() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gate = make(chan struct{})
	return a.gate
}

func (a *fakeAuth) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeView records every call.
type fakeView struct {
	mu       sync.Mutex
	rendered []chat.Message
	rosters  [][]string
	typing   []string
	screens  []string
	notices  []Notice
	cleared  int
}

func (v *fakeView) Render(msg chat.Message) {
	v.mu.Lock()
	v.rendered = append(v.rendered, msg)
	v.mu.Unlock()
}

func (v *fakeView) SetRoster(users []string) {
	v.mu.Lock()
	v.rosters = append(v.rosters, users)
	v.mu.Unlock()
}

func (v *fakeView) SetTypingText(text string) {
	v.mu.Lock()
	v.typing = append(v.typing, text)
	v.mu.Unlock()
}

func (v *fakeView) ShowChat() {
	v.mu.Lock()
	v.screens = append(v.screens, "chat")
	v.mu.Unlock()
}

func (v *fakeView) ShowLogin() {
	v.mu.Lock()
	v.screens = append(v.screens, "login")
	v.mu.Unlock()
}

func (v *fakeView) ShowNotice(n Notice) {
	v.mu.Lock()
	v.notices = append(v.notices, n)
	v.mu.Unlock()
}

func (v *fakeView) ClearInput() {
	v.mu.Lock()
	v.cleared++
	v.mu.Unlock()
}

func (v *fakeView) messages() []chat.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]chat.Message(nil), v.rendered...)
}

func (v *fakeView) lastRoster() ([]string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.rosters) == 0 {
		return nil, false
	}
	return v.rosters[len(v.rosters)-1], true
}

func (v *fakeView) typingText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.typing) == 0 {
		return ""
	}
	return v.typing[len(v.typing)-1]
}

func (v *fakeView) screen() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.screens) == 0 {
		return ""
	}
	return v.screens[len(v.screens)-1]
}

func (v *fakeView) screenCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.screens)
}

func (v *fakeView) lastNotice() (Notice, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.notices) == 0 {
		return Notice{}, false
	}
	return v.notices[len(v.notices)-1], true
}

func (v *fakeView) clearCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cleared
}

// recordingNotifier collects notified messages.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []chat.Message
}

func (n *recordingNotifier) Notify(msg chat.Message) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

var errDialRefused = errors.New("dial tcp: connection refused")
