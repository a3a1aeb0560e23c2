// Package tui is the terminal front end of the chat client. It implements
// the session's view on top of bubbletea: a login form, the conversation
// transcript, the online roster, the typing line and transient notices.
// Terminal focus events are reported to the session as visibility.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/session"
)

// Controller is the part of the session the terminal drives.
type Controller interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	SendChatMessage(text string) error
	SendImage(data []byte, contentType string) error
	NotifyTyping(composing bool) error
	SetVisible(visible bool)
	Username() string
	State() session.State
}

// Config holds view settings.
type Config struct {
	NoticeTimeout  time.Duration // how long a notice stays up (default: 3.5s)
	Scrollback     int           // transcript entries kept
	RequestTimeout time.Duration // login and register deadline (default: 15s)
}

// DefaultConfig returns the standard view settings.
func DefaultConfig() Config {
	return Config{
		NoticeTimeout:  3500 * time.Millisecond,
		Scrollback:     chat.DefaultTranscriptSize,
		RequestTimeout: 15 * time.Second,
	}
}

type screen int

const (
	screenLogin screen = iota
	screenChat
)

const (
	rosterWidth   = 22
	defaultWidth  = 80
	defaultHeight = 24
)

type (
	noticeExpiredMsg struct{ seq int }
	authDoneMsg      struct{}
)

// Model is the bubbletea model of the client.
type Model struct {
	ctl      Controller
	cfg      Config
	stickers *chat.Picker
	styles   Styles
	logger   zerolog.Logger
	calls    *callQueue

	screen   screen
	username textinput.Model
	password textinput.Model
	busy     bool

	input      textinput.Model
	viewport   viewport.Model
	transcript *chat.Transcript
	roster     []string
	typing     string
	composing  bool

	notice    *session.Notice
	noticeSeq int

	width  int
	height int
}

// New builds the model on the login screen. stickers may be nil.
func New(ctl Controller, cfg Config, stickers *chat.Picker, logger zerolog.Logger) Model {
	def := DefaultConfig()
	if cfg.NoticeTimeout <= 0 {
		cfg.NoticeTimeout = def.NoticeTimeout
	}
	if cfg.Scrollback <= 0 {
		cfg.Scrollback = def.Scrollback
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	m := Model{
		ctl:        ctl,
		cfg:        cfg,
		stickers:   stickers,
		styles:     DefaultStyles(),
		logger:     logger.With().Str("component", "tui").Logger(),
		calls:      newCallQueue(),
		username:   newInput("username"),
		password:   newInput("password"),
		input:      newInput("Type a message, /help for commands"),
		transcript: chat.NewTranscript(cfg.Scrollback),
		viewport:   viewport.New(defaultWidth-rosterWidth, defaultHeight-4),
	}
	m.password.EchoMode = textinput.EchoPassword
	m.password.EchoCharacter = '•'
	m.username.Focus()
	m.setSize(defaultWidth, defaultHeight)
	return m
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("whisper chat")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.FocusMsg:
		return m, m.setVisible(true)

	case tea.BlurMsg:
		return m, m.setVisible(false)

	case renderMsg:
		m.transcript.Add(msg.msg)
		m.refresh()
		return m, nil

	case rosterMsg:
		m.roster = msg.users
		return m, nil

	case typingMsg:
		m.typing = msg.text
		return m, nil

	case showChatMsg:
		m.screen = screenChat
		m.busy = false
		m.password.Reset()
		m.username.Blur()
		m.password.Blur()
		m.input.Focus()
		return m, nil

	case showLoginMsg:
		m.screen = screenLogin
		// A dropped connection keeps the conversation for when it comes back.
		if m.ctl.State() == session.StateIdle {
			m.transcript.Reset()
			m.refresh()
		}
		m.roster = nil
		m.typing = ""
		m.input.Reset()
		m.input.Blur()
		m.composing = false
		m.password.Blur()
		m.username.Focus()
		return m, nil

	case noticeMsg:
		cmd := m.showNotice(msg.notice)
		return m, cmd

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = nil
		}
		return m, nil

	case clearInputMsg:
		m.input.Reset()
		m.composing = false
		return m, nil

	case authDoneMsg:
		m.busy = false
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.toggleField()
		return m, nil
	case tea.KeyEnter:
		if m.username.Focused() {
			m.toggleField()
			return m, nil
		}
		cmd := m.authenticate(false)
		return m, cmd
	case tea.KeyCtrlR:
		cmd := m.authenticate(true)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleField() {
	if m.username.Focused() {
		m.username.Blur()
		m.password.Focus()
		return
	}
	m.password.Blur()
	m.username.Focus()
}

// authenticate logs in or registers with the form values. Only one request
// runs at a time.
func (m *Model) authenticate(register bool) tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	ctl, timeout, logger := m.ctl, m.cfg.RequestTimeout, m.logger
	username, password := m.username.Value(), m.password.Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var err error
		if register {
			err = ctl.Register(ctx, username, password)
		} else {
			err = ctl.Login(ctx, username, password)
		}
		if err != nil {
			logger.Debug().Err(err).Bool("register", register).Msg("[tui] auth request failed")
		}
		return authDoneMsg{}
	}
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	typing := m.typingChanged()
	return m, tea.Batch(cmd, typing)
}

// typingChanged reports composing activity after an edit. Command lines are
// not announced.
func (m *Model) typingChanged() tea.Cmd {
	value := m.input.Value()
	composing := strings.TrimSpace(value) != "" && !strings.HasPrefix(value, "/")
	if !composing && !m.composing {
		return nil
	}
	m.composing = composing
	ctl, logger := m.ctl, m.logger
	return m.calls.push(func() tea.Msg {
		if err := ctl.NotifyTyping(composing); err != nil {
			logger.Debug().Err(err).Msg("[tui] typing update failed")
		}
		return nil
	})
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.handleCommand(text)
	}
	return m, m.call("send", func() error { return m.ctl.SendChatMessage(text) })
}

// call runs fn off the update loop, after every call issued before it. The
// session reports failures to the user itself, so errors are only logged.
func (m Model) call(what string, fn func() error) tea.Cmd {
	logger := m.logger
	return m.calls.push(func() tea.Msg {
		if err := fn(); err != nil {
			logger.Debug().Err(err).Str("op", what).Msg("[tui] request failed")
		}
		return nil
	})
}

func (m Model) setVisible(visible bool) tea.Cmd {
	ctl := m.ctl
	return m.calls.push(func() tea.Msg {
		ctl.SetVisible(visible)
		return nil
	})
}

func (m *Model) showNotice(n session.Notice) tea.Cmd {
	m.notice = &n
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(m.cfg.NoticeTimeout, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (m *Model) setSize(width, height int) {
	m.width, m.height = width, height
	vw := width - rosterWidth
	if vw < 20 {
		vw = width
	}
	vh := height - 4
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = vw
	m.viewport.Height = vh
	m.input.Width = width - len(m.input.Prompt) - 1
	m.refresh()
}

// refresh re-renders the transcript into the viewport and scrolls to the
// newest entry.
func (m *Model) refresh() {
	if m.transcript.Len() == 0 {
		m.viewport.SetContent(m.styles.Hint.Render("No messages yet"))
		return
	}
	msgs := m.transcript.Messages()
	lines := make([]string, 0, len(msgs))
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	for _, msg := range msgs {
		lines = append(lines, wrap.Render(formatMessage(msg, m.styles)))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.screen == screenLogin {
		return m.loginView()
	}
	return m.chatView()
}

func (m Model) loginView() string {
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Username") + "\n")
	b.WriteString(m.username.View() + "\n\n")
	b.WriteString(m.styles.Label.Render("Password") + "\n")
	b.WriteString(m.password.View() + "\n\n")
	hint := "enter: log in · ctrl+r: register · tab: switch field · esc: quit"
	if m.busy {
		hint = "please wait…"
	}
	b.WriteString(m.styles.Hint.Render(hint))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render("whisper chat"),
		m.styles.Form.Render(b.String()),
		m.noticeView(),
	)
}

func (m Model) chatView() string {
	header := m.styles.Title.Render("whisper chat") + " " +
		m.styles.Status.Render(fmt.Sprintf("%s · %s", m.ctl.Username(), m.ctl.State()))

	body := m.viewport.View()
	if m.viewport.Width < m.width {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.rosterView())
	}

	footer := m.noticeView()
	if footer == "" {
		footer = m.styles.Hint.Render("/help for commands · ctrl+c to quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.styles.Typing.Render(m.typing),
		m.input.View(),
		footer,
	)
}

func (m Model) rosterView() string {
	lines := []string{m.styles.RosterHead.Render(fmt.Sprintf("Online (%d)", len(m.roster)))}
	lines = append(lines, m.roster...)
	return m.styles.Roster.
		Width(rosterWidth - 4).
		Height(m.viewport.Height - 2).
		Render(strings.Join(lines, "\n"))
}

func (m Model) noticeView() string {
	if m.notice == nil {
		return ""
	}
	if m.notice.Level == session.NoticeError {
		return m.styles.NoticeErr.Render(m.notice.Text)
	}
	return m.styles.NoticeInfo.Render(m.notice.Text)
}

// formatMessage renders one transcript entry on a single logical line.
func formatMessage(msg chat.Message, st Styles) string {
	var prefix string
	if !msg.At.IsZero() {
		prefix = st.Time.Render(msg.At.Local().Format("15:04")) + " "
	}
	if msg.System {
		return prefix + st.System.Render(chat.SystemSender+": "+msg.Text)
	}

	sender := st.Sender
	if msg.Own {
		sender = st.OwnSender
	}
	line := prefix + sender.Render(msg.From) + " "

	switch {
	case msg.HasImage():
		ct, size, ok := chat.DecodeDataURL(msg.Image)
		if !ok {
			return line + st.System.Render("[unreadable image]")
		}
		line += st.Image.Render(fmt.Sprintf("[%s, %s]", ct, humanSize(size)))
		if msg.Text != "" {
			line += " " + msg.Text
		}
		return line
	case msg.Sticker:
		return line + st.Sticker.Render(msg.Text)
	default:
		return line + msg.Text
	}
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
