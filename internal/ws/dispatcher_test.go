package ws

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/protocol"
)

type replyRecorder struct {
	frames [][]byte
	err    error
}

func (r *replyRecorder) write(data []byte) error {
	r.frames = append(r.frames, data)
	return r.err
}

func TestDispatch_PingRepliesPong(t *testing.T) {
	rec := &replyRecorder{}
	d := NewMessageDispatcher(rec.write, zerolog.Nop())

	d.Dispatch([]byte(`{"type":"ping"}`))

	require.Len(t, rec.frames, 1)
	assert.JSONEq(t, `{"type":"pong"}`, string(rec.frames[0]))
}

func TestDispatch_PongFailureIsLogged(t *testing.T) {
	rec := &replyRecorder{err: errors.New("closed")}
	d := NewMessageDispatcher(rec.write, zerolog.Nop())

	assert.NotPanics(t, func() { d.Dispatch([]byte(`{"type":"ping"}`)) })
}

func TestDispatch_RoutesByType(t *testing.T) {
	rec := &replyRecorder{}
	d := NewMessageDispatcher(rec.write, zerolog.Nop())

	var got []interface{}
	d.Register(protocol.TypeMessage, func(msg interface{}) { got = append(got, msg) })
	d.Register(protocol.TypeOnlineUsers, func(msg interface{}) { got = append(got, msg) })

	d.Dispatch([]byte(`{"type":"message","username":"bob","message":"hi"}`))
	d.Dispatch([]byte(`{"type":"online_users","users":["a","b"]}`))

	require.Len(t, got, 2)
	chatMsg, ok := got[0].(protocol.ServerChatMsg)
	require.True(t, ok)
	assert.Equal(t, "bob", chatMsg.Username)
	assert.Equal(t, "hi", chatMsg.Message)

	users, ok := got[1].(protocol.OnlineUsersMsg)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, users.Users)
	assert.Empty(t, rec.frames)
}

func TestDispatch_TextFallback(t *testing.T) {
	d := NewMessageDispatcher((&replyRecorder{}).write, zerolog.Nop())

	var texts []string
	d.HandleText(func(text string) { texts = append(texts, text) })

	d.Dispatch([]byte("server restarting"))
	d.Dispatch([]byte(`{"type":"message"`))

	assert.Equal(t, []string{"server restarting", `{"type":"message"`}, texts)
}

func TestDispatch_UnknownAndUnhandledAreDropped(t *testing.T) {
	rec := &replyRecorder{}
	d := NewMessageDispatcher(rec.write, zerolog.Nop())

	called := false
	d.HandleText(func(string) { called = true })

	d.Dispatch([]byte(`{"type":"presence","user":"x"}`))
	d.Dispatch([]byte(`{"users":[]}`))
	d.Dispatch([]byte(`{"type":"typing","username":"bob"}`))
	d.Dispatch([]byte(`{"type":"online_users","users":"nope"}`))

	assert.False(t, called)
	assert.Empty(t, rec.frames)
}
