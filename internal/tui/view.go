package tui

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/session"
)

// Messages the session pushes into the program.
type (
	renderMsg     struct{ msg chat.Message }
	rosterMsg     struct{ users []string }
	typingMsg     struct{ text string }
	showChatMsg   struct{}
	showLoginMsg  struct{}
	noticeMsg     struct{ notice session.Notice }
	clearInputMsg struct{}
)

// Sender is the part of *tea.Program the view needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramView implements session.View by forwarding every call to a running
// bubbletea program. Calls made before Attach are dropped.
type ProgramView struct {
	mu     sync.RWMutex
	sender Sender
}

var (
	_ session.View = (*ProgramView)(nil)
	_ Controller   = (*session.Session)(nil)
)

// NewProgramView returns a view with no program attached yet.
func NewProgramView() *ProgramView {
	return &ProgramView{}
}

// Attach sets the program that receives view updates.
func (v *ProgramView) Attach(s Sender) {
	v.mu.Lock()
	v.sender = s
	v.mu.Unlock()
}

func (v *ProgramView) send(msg tea.Msg) {
	v.mu.RLock()
	s := v.sender
	v.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

func (v *ProgramView) Render(msg chat.Message) { v.send(renderMsg{msg: msg}) }

func (v *ProgramView) SetRoster(users []string) {
	v.send(rosterMsg{users: append([]string(nil), users...)})
}

func (v *ProgramView) SetTypingText(text string) { v.send(typingMsg{text: text}) }
func (v *ProgramView) ShowChat()                 { v.send(showChatMsg{}) }
func (v *ProgramView) ShowLogin()                { v.send(showLoginMsg{}) }
func (v *ProgramView) ShowNotice(n session.Notice) {
	v.send(noticeMsg{notice: n})
}
func (v *ProgramView) ClearInput() { v.send(clearInputMsg{}) }

// Bell rings the terminal bell for incoming messages.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

var _ session.Notifier = (*Bell)(nil)

// NewBell writes the bell character to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) Notify(chat.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.w, "\a")
}
