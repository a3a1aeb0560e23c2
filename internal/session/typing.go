package session

import (
	"strconv"

	"github.com/benbjohnson/clock"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/protocol"
)

// typingState is the local composing flag and its single idle timer. seq
// invalidates callbacks of timers that were replaced or stopped.
type typingState struct {
	active bool
	timer  *clock.Timer
	seq    uint64
}

// remoteTyping is the "x is typing" line shown for another user.
type remoteTyping struct {
	from  string
	timer *clock.Timer
	seq   uint64
}

// NotifyTyping reports local composing activity. A typing envelope is sent
// only when the state changes. While composing, each call restarts the idle
// timer; when it expires typing:false is sent.
func (s *Session) NotifyTyping(composing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.state != StateOpen {
		return ErrNotConnected
	}
	if !composing {
		return s.stopTypingLocked(true)
	}
	if !s.typing.active {
		if err := s.emitTypingLocked(true); err != nil {
			return err
		}
		s.typing.active = true
	}
	s.restartTypingTimerLocked()
	return nil
}

func (s *Session) restartTypingTimerLocked() {
	if s.typing.timer != nil {
		s.typing.timer.Stop()
	}
	s.typing.seq++
	gen, seq := s.gen, s.typing.seq
	s.typing.timer = s.clock.AfterFunc(s.cfg.TypingIdle, func() {
		s.typingIdle(gen, seq)
	})
}

// typingIdle fires after the idle timeout and flips typing back to false.
func (s *Session) typingIdle(gen, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || seq != s.typing.seq || !s.typing.active {
		return
	}
	s.typing.timer = nil
	if err := s.stopTypingLocked(true); err != nil {
		s.logger.Debug().Err(err).Msg("[typing] idle emit failed")
	}
}

// stopTypingLocked cancels the idle timer and, when emit is set and typing
// was active, sends typing:false.
func (s *Session) stopTypingLocked(emit bool) error {
	if s.typing.timer != nil {
		s.typing.timer.Stop()
		s.typing.timer = nil
	}
	s.typing.seq++
	if !s.typing.active {
		return nil
	}
	s.typing.active = false
	if !emit {
		return nil
	}
	return s.emitTypingLocked(false)
}

// resetTypingLocked drops the local typing state without telling the server.
func (s *Session) resetTypingLocked() {
	_ = s.stopTypingLocked(false)
}

func (s *Session) emitTypingLocked(typing bool) error {
	data, err := protocol.NewClientMessage(protocol.TypeTyping, protocol.TypingMsg{Typing: typing})
	if err != nil {
		return err
	}
	if err := s.writeLocked(protocol.TypeTyping, data); err != nil {
		return err
	}
	metrics.TypingEmits.WithLabelValues(strconv.FormatBool(typing)).Inc()
	return nil
}

// onTyping shows or clears another user's typing line. The line clears on
// its own after RemoteTypingTimeout.
func (s *Session) onTyping(gen uint64, m protocol.ServerTypingMsg) {
	s.mu.Lock()
	if gen != s.gen || s.closed || m.Username == s.username {
		s.mu.Unlock()
		return
	}

	var text string
	if m.IsTyping() {
		if s.remote.timer != nil {
			s.remote.timer.Stop()
		}
		s.remote.seq++
		s.remote.from = m.Username
		seq := s.remote.seq
		s.remote.timer = s.clock.AfterFunc(s.cfg.RemoteTypingTimeout, func() {
			s.remoteTypingExpired(gen, seq)
		})
		text = chat.SanitizeName(m.Username) + " is typing…"
	} else {
		if s.remote.from != m.Username {
			s.mu.Unlock()
			return
		}
		s.clearRemoteTypingLocked()
	}
	s.mu.Unlock()

	s.view.SetTypingText(text)
}

func (s *Session) remoteTypingExpired(gen, seq uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed || seq != s.remote.seq {
		s.mu.Unlock()
		return
	}
	s.remote.timer = nil
	s.remote.from = ""
	s.mu.Unlock()

	s.view.SetTypingText("")
}

func (s *Session) clearRemoteTypingLocked() {
	if s.remote.timer != nil {
		s.remote.timer.Stop()
		s.remote.timer = nil
	}
	s.remote.seq++
	s.remote.from = ""
}
