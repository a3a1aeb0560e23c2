package tui

import (
	"bytes"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/session"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func TestProgramViewDropsBeforeAttach(t *testing.T) {
	v := NewProgramView()
	v.ShowChat()

	s := &recordingSender{}
	v.Attach(s)
	assert.Empty(t, s.msgs)
}

func TestProgramViewForwards(t *testing.T) {
	v := NewProgramView()
	s := &recordingSender{}
	v.Attach(s)

	users := []string{"bob"}
	v.Render(chat.Message{From: "bob", Text: "hi"})
	v.SetRoster(users)
	v.SetTypingText("bob is typing…")
	v.ShowChat()
	v.ShowLogin()
	v.ShowNotice(session.Notice{Text: "hello"})
	v.ClearInput()

	require.Len(t, s.msgs, 7)
	assert.Equal(t, renderMsg{msg: chat.Message{From: "bob", Text: "hi"}}, s.msgs[0])
	assert.Equal(t, rosterMsg{users: []string{"bob"}}, s.msgs[1])
	assert.Equal(t, typingMsg{text: "bob is typing…"}, s.msgs[2])
	assert.IsType(t, showChatMsg{}, s.msgs[3])
	assert.IsType(t, showLoginMsg{}, s.msgs[4])
	assert.Equal(t, noticeMsg{notice: session.Notice{Text: "hello"}}, s.msgs[5])
	assert.IsType(t, clearInputMsg{}, s.msgs[6])

	users[0] = "mallory"
	assert.Equal(t, rosterMsg{users: []string{"bob"}}, s.msgs[1], "roster is copied")
}

func TestBellRings(t *testing.T) {
	var buf bytes.Buffer
	b := NewBell(&buf)
	b.Notify(chat.Message{From: "bob"})
	b.Notify(chat.Message{From: "bob"})
	assert.Equal(t, "\a\a", buf.String())
}
