// Package session implements the chat client session: credential exchange,
// one live transport connection, inbound envelope dispatch, heartbeat,
// automatic reconnection while visible, and the local typing debounce.
//
// All mutable state is guarded by one mutex. Every connection gets a new
// generation number; timer callbacks and read loops carry the generation
// they were started for and do nothing once it is stale, so late network
// results after a transition are safe no-ops.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/whisper/chat-client/internal/auth"
	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/protocol"
	"github.com/whisper/chat-client/internal/token"
	"github.com/whisper/chat-client/internal/ws"
)

var (
	// ErrNotConnected is returned by send operations when no connection is
	// open.
	ErrNotConnected = errors.New("session: not connected")

	// ErrAlreadyConnected is returned by Login while a connection is open or
	// being opened.
	ErrAlreadyConnected = errors.New("session: already connected")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("session: closed")

	errSuperseded = errors.New("session: connection superseded")
)

// Authenticator exchanges credentials with the auth API.
type Authenticator interface {
	Register(ctx context.Context, creds auth.Credentials) error
	Login(ctx context.Context, creds auth.Credentials) (string, error)
}

// Dialer opens a transport connection.
type Dialer interface {
	Dial(ctx context.Context, url string) (ws.Conn, error)
}

// Config holds the session timers and the server location.
type Config struct {
	ServerURL           string        // http(s) base URL of the chat service
	HeartbeatInterval   time.Duration // ping cadence while open (default: 30s)
	ReconnectDelay      time.Duration // delay before redialing (default: 5s)
	TypingIdle          time.Duration // idle time before typing:false (default: 2s)
	RemoteTypingTimeout time.Duration // how long "x is typing" stays up (default: 3s)
}

// DefaultConfig returns the standard timer values.
func DefaultConfig() Config {
	return Config{
		ServerURL:           "http://localhost:8000",
		HeartbeatInterval:   ws.DefaultHeartbeatInterval,
		ReconnectDelay:      5 * time.Second,
		TypingIdle:          2 * time.Second,
		RemoteTypingTimeout: 3 * time.Second,
	}
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces the wall clock, typically with a mock in tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clock = clk }
}

// WithLogger sets the base logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithTokenStore sets where the access token is persisted.
func WithTokenStore(store token.Store) Option {
	return func(s *Session) { s.tokens = store }
}

// WithNotifiers adds sinks for incoming messages from other users.
func WithNotifiers(n ...Notifier) Option {
	return func(s *Session) { s.notifiers = append(s.notifiers, n...) }
}

// Session is one chat client session. Construct one per user interface.
type Session struct {
	id        string
	cfg       Config
	auth      Authenticator
	dialer    Dialer
	view      View
	tokens    token.Store
	notifiers []Notifier
	clock     clock.Clock
	logger    zerolog.Logger

	mu        sync.Mutex
	state     State
	username  string
	conn      ws.Conn
	gen       uint64
	visible   bool
	closed    bool
	heartbeat *ws.Heartbeat
	reconnect *clock.Timer
	typing    typingState
	remote    remoteTyping
	roster    []string

	wg sync.WaitGroup // read loops and reconnect attempts
}

// New creates an idle, visible session.
func New(cfg Config, authenticator Authenticator, dialer Dialer, view View, opts ...Option) *Session {
	def := DefaultConfig()
	if cfg.ServerURL == "" {
		cfg.ServerURL = def.ServerURL
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = def.TypingIdle
	}
	if cfg.RemoteTypingTimeout <= 0 {
		cfg.RemoteTypingTimeout = def.RemoteTypingTimeout
	}

	s := &Session{
		id:      uuid.New().String(),
		cfg:     cfg,
		auth:    authenticator,
		dialer:  dialer,
		view:    view,
		clock:   clock.New(),
		logger:  zerolog.Nop(),
		visible: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokens == nil {
		s.tokens = token.NewMemoryStore()
	}
	s.logger = s.logger.With().Str("component", "session").Str("session", s.id).Logger()
	metrics.ConnectionState.Set(float64(StateIdle))
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the logged-in user, or "" when idle.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Roster returns the last online roster, excluding the local user.
func (s *Session) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roster...)
}

// Register creates an account. The outcome is also shown as a notice.
func (s *Session) Register(ctx context.Context, username, password string) error {
	creds, err := auth.Credentials{Username: username, Password: password}.Validate()
	if err != nil {
		s.view.ShowNotice(errorNotice(err))
		return err
	}
	if err := s.auth.Register(ctx, creds); err != nil {
		s.logger.Warn().Err(err).Str("user", creds.Username).Msg("[session] register failed")
		s.view.ShowNotice(errorNotice(err))
		return err
	}
	s.logger.Info().Str("user", creds.Username).Msg("[session] registered")
	s.view.ShowNotice(Notice{Level: NoticeInfo, Text: textRegistered})
	return nil
}

// Login exchanges credentials for a token, stores it and opens the chat
// connection. Validation happens before any network call.
func (s *Session) Login(ctx context.Context, username, password string) error {
	creds, err := auth.Credentials{Username: username, Password: password}.Validate()
	if err != nil {
		s.view.ShowNotice(errorNotice(err))
		return err
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.state == StateOpen || s.state == StateConnecting:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	tok, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", creds.Username).Msg("[session] login failed")
		s.view.ShowNotice(errorNotice(err))
		return err
	}
	if err := s.tokens.Save(ctx, tok); err != nil {
		s.logger.Warn().Err(err).Msg("[session] token save failed")
	}

	s.mu.Lock()
	s.username = creds.Username
	s.mu.Unlock()

	s.logger.Info().Str("user", creds.Username).Msg("[session] logged in")
	return s.connect(ctx)
}

// Logout closes the connection, cancels every timer, clears the stored
// token and returns to Idle.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	hb, conn := s.teardownLocked()
	s.username = ""
	s.roster = nil
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	hb.Stop()
	if conn != nil {
		_ = conn.Close()
	}

	s.view.SetTypingText("")
	s.view.SetRoster(nil)
	s.view.ShowLogin()
	s.logger.Info().Msg("[session] logged out")

	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear token: %w", err)
	}
	return nil
}

// SetVisible reports whether the user interface is visible. Reconnects only
// happen while visible; becoming visible again while Closed with no
// reconnect pending reconnects immediately.
func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	now := visible && !s.closed && s.state == StateClosed && s.reconnect == nil && s.username != ""
	s.mu.Unlock()

	if now {
		s.logger.Debug().Msg("[session] visible again, reconnecting")
		if err := s.connect(context.Background()); err != nil {
			s.logger.Debug().Err(err).Msg("[session] reconnect on visibility failed")
		}
	}
}

// Close tears the session down for good and waits for its goroutines. Any
// callback arriving afterwards is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	hb, conn := s.teardownLocked()
	s.mu.Unlock()

	hb.Stop()
	if conn != nil {
		_ = conn.Close()
	}
	s.wg.Wait()
	s.logger.Debug().Msg("[session] closed")
	return nil
}

// teardownLocked invalidates the current generation and detaches everything
// tied to it. The caller stops the returned heartbeat and closes the
// returned connection after unlocking.
func (s *Session) teardownLocked() (*ws.Heartbeat, ws.Conn) {
	s.gen++
	hb, conn := s.heartbeat, s.conn
	s.heartbeat, s.conn = nil, nil
	s.cancelReconnectLocked()
	s.resetTypingLocked()
	s.clearRemoteTypingLocked()
	return hb, conn
}

// connect dials the chat endpoint for the current user. The token is read
// from the store on every attempt; without one the username is used.
func (s *Session) connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancelReconnectLocked()
	s.gen++
	gen := s.gen
	username := s.username
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	tok, err := s.tokens.Load(ctx)
	if err != nil {
		if !errors.Is(err, token.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("[session] token load failed")
		}
		tok = username
	}

	url, err := ws.ChatURL(s.cfg.ServerURL, tok)
	if err != nil {
		s.handleClosed(gen, err)
		return err
	}

	start := s.clock.Now()
	conn, err := s.dialer.Dial(ctx, url)
	metrics.DialLatency.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		metrics.ConnectAttempts.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("[session] dial failed")
		s.handleClosed(gen, err)
		return err
	}
	metrics.ConnectAttempts.WithLabelValues("ok").Inc()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return errSuperseded
	}
	// A login finishing while a reconnect already opened replaces it.
	oldHB, oldConn := s.heartbeat, s.conn
	if oldConn != nil {
		s.resetTypingLocked()
		s.clearRemoteTypingLocked()
	}
	s.conn = conn
	s.setStateLocked(StateOpen)
	s.heartbeat = ws.StartHeartbeat(s.clock, s.cfg.HeartbeatInterval, func() error {
		return s.sendPing(conn)
	}, s.logger)
	s.wg.Add(1)
	s.mu.Unlock()

	oldHB.Stop()
	if oldConn != nil {
		_ = oldConn.Close()
	}

	s.logger.Info().Str("user", username).Msg("[session] connected")
	s.view.ShowChat()
	go s.readLoop(gen, conn)
	return nil
}

// readLoop pumps inbound frames for one connection until it fails.
func (s *Session) readLoop(gen uint64, conn ws.Conn) {
	defer s.wg.Done()

	d := ws.NewMessageDispatcher(conn.WriteMessage, s.logger)
	d.Register(protocol.TypeMessage, func(msg interface{}) {
		if m, ok := msg.(protocol.ServerChatMsg); ok {
			s.onChat(gen, m)
		}
	})
	d.Register(protocol.TypeOnlineUsers, func(msg interface{}) {
		if m, ok := msg.(protocol.OnlineUsersMsg); ok {
			s.onRoster(gen, m)
		}
	})
	d.Register(protocol.TypeTyping, func(msg interface{}) {
		if m, ok := msg.(protocol.ServerTypingMsg); ok {
			s.onTyping(gen, m)
		}
	})
	d.HandleText(func(text string) { s.onText(gen, text) })

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosed(gen, err)
			return
		}
		d.Dispatch(data)
	}
}

// handleClosed moves a current connection to Closed, stops its heartbeat
// and schedules a reconnect when visible.
func (s *Session) handleClosed(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	hb, conn := s.heartbeat, s.conn
	s.heartbeat, s.conn = nil, nil
	s.resetTypingLocked()
	s.clearRemoteTypingLocked()
	s.setStateLocked(StateClosed)
	if s.visible {
		s.scheduleReconnectLocked()
	}
	visible := s.visible
	s.mu.Unlock()

	hb.Stop()
	if conn != nil {
		_ = conn.Close()
	}
	s.logger.Warn().Err(cause).Bool("visible", visible).Msg("[session] connection closed")

	s.view.SetTypingText("")
	s.view.ShowLogin()
	s.view.ShowNotice(Notice{Level: NoticeError, Text: textDisconnected})
}

func (s *Session) scheduleReconnectLocked() {
	s.cancelReconnectLocked()
	gen := s.gen
	s.reconnect = s.clock.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.reconnectFired(gen)
	})
}

func (s *Session) cancelReconnectLocked() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// reconnectFired redials if the session is still the one that scheduled
// the timer and is visible now.
func (s *Session) reconnectFired(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed || s.state != StateClosed {
		s.mu.Unlock()
		return
	}
	s.reconnect = nil
	if !s.visible {
		s.mu.Unlock()
		s.logger.Debug().Msg("[session] hidden, reconnect deferred")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	metrics.Reconnects.Inc()
	s.logger.Info().Msg("[session] reconnecting")
	if err := s.connect(context.Background()); err != nil {
		s.logger.Debug().Err(err).Msg("[session] reconnect failed")
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state != state {
		s.logger.Debug().Str("from", s.state.String()).Str("to", state.String()).Msg("[session] state")
	}
	s.state = state
	metrics.ConnectionState.Set(float64(state))
}

// SendChatMessage sends text as a chat message. Text that is empty after
// trimming is ignored. A single emoji is flagged as a sticker. On success
// the input is cleared and the typing state reset.
func (s *Session) SendChatMessage(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	data, err := protocol.NewClientMessage(protocol.TypeMessage, protocol.ChatMsg{
		Message:   trimmed,
		IsSticker: chat.IsSticker(trimmed),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn == nil || s.state != StateOpen {
		s.mu.Unlock()
		s.view.ShowNotice(errorNotice(ErrNotConnected))
		return ErrNotConnected
	}
	err = s.writeLocked(protocol.TypeMessage, data)
	if err == nil {
		s.stopTypingLocked(true)
	}
	s.mu.Unlock()

	if err != nil {
		s.view.ShowNotice(errorNotice(ErrNotConnected))
		return fmt.Errorf("session: send message: %w", err)
	}
	s.view.ClearInput()
	return nil
}

// SendImage sends an image as an inline data URL with an empty message. An
// empty contentType is sniffed from data. Non-images and images over 5 MiB
// are rejected before anything is sent.
func (s *Session) SendImage(data []byte, contentType string) error {
	ct, err := chat.ValidateImage(data, contentType)
	if err != nil {
		s.view.ShowNotice(errorNotice(err))
		return err
	}

	payload, err := protocol.NewClientMessage(protocol.TypeMessage, protocol.ChatMsg{
		Message: "",
		Image:   chat.EncodeDataURL(ct, data),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn == nil || s.state != StateOpen {
		s.mu.Unlock()
		s.view.ShowNotice(errorNotice(ErrNotConnected))
		return ErrNotConnected
	}
	err = s.writeLocked(protocol.TypeMessage, payload)
	s.mu.Unlock()

	if err != nil {
		s.view.ShowNotice(errorNotice(ErrNotConnected))
		return fmt.Errorf("session: send image: %w", err)
	}
	return nil
}

// writeLocked sends one envelope on the current connection.
func (s *Session) writeLocked(msgType string, data []byte) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteMessage(data); err != nil {
		return err
	}
	metrics.EnvelopesTotal.WithLabelValues(metrics.DirectionOut, msgType).Inc()
	return nil
}

// sendPing is the heartbeat. It writes to the connection it was started for
// and never takes the session lock, so stopping the heartbeat under the
// lock cannot deadlock.
func (s *Session) sendPing(conn ws.Conn) error {
	data, err := protocol.NewClientMessage(protocol.TypePing, protocol.PingMsg{})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(data); err != nil {
		return err
	}
	metrics.Heartbeats.Inc()
	metrics.EnvelopesTotal.WithLabelValues(metrics.DirectionOut, protocol.TypePing).Inc()
	return nil
}

// current reports whether gen is still live and returns the local username.
func (s *Session) current(gen uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, gen == s.gen && !s.closed
}

func (s *Session) onChat(gen uint64, m protocol.ServerChatMsg) {
	me, ok := s.current(gen)
	if !ok {
		return
	}

	msg := chat.Message{
		From: chat.SanitizeName(m.Username),
		At:   m.Timestamp.Time,
		Own:  m.Username == me,
	}
	if msg.At.IsZero() {
		msg.At = s.clock.Now()
	}
	// The sticker flag is trusted only when the text really is one emoji;
	// everything else is sanitised like normal text.
	if m.IsSticker && chat.IsSticker(m.Message) {
		msg.Sticker = true
		msg.Text = strings.TrimSpace(m.Message)
	} else {
		msg.Text = chat.Sanitize(m.Message)
	}
	if m.Image != "" {
		if ct, _, ok := chat.DecodeDataURL(m.Image); ok && strings.HasPrefix(ct, "image/") {
			msg.Image = m.Image
		} else {
			s.logger.Debug().Str("from", m.Username).Msg("[session] dropping non-image attachment")
		}
	}
	if msg.Text == "" && msg.Image == "" {
		return
	}

	s.view.Render(msg)
	if !msg.Own {
		for _, n := range s.notifiers {
			n.Notify(msg)
		}
	}
}

func (s *Session) onRoster(gen uint64, m protocol.OnlineUsersMsg) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	seen := make(map[string]struct{}, len(m.Users))
	roster := make([]string, 0, len(m.Users))
	for _, u := range m.Users {
		if u == s.username {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		roster = append(roster, chat.SanitizeName(u))
	}
	s.roster = roster
	s.mu.Unlock()

	s.view.SetRoster(append([]string(nil), roster...))
}

func (s *Session) onText(gen uint64, text string) {
	if _, ok := s.current(gen); !ok {
		return
	}
	s.view.Render(chat.Message{
		From:   chat.SystemSender,
		Text:   chat.Sanitize(text),
		At:     s.clock.Now(),
		System: true,
	})
}
