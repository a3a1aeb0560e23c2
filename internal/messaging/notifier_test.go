package messaging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/chat"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNotifier_PublishesNotification(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, func() string { return "alice" }, zerolog.Nop())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n.Notify(chat.Message{From: "bob", Text: "🔥", Sticker: true, At: at})

	assert.Equal(t, "chat.notify.alice", pub.subject)
	var got Notification
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, "bob", got.From)
	assert.Equal(t, "🔥", got.Text)
	assert.True(t, got.Sticker)
	assert.False(t, got.Image)
	assert.True(t, at.Equal(got.At))
}

func TestNotifier_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	n := NewNotifier(pub, func() string { return "alice" }, zerolog.Nop())
	assert.NotPanics(t, func() { n.Notify(chat.Message{From: "bob", Text: "hi"}) })
}

func TestNotifier_ResolvesRecipientPerMessage(t *testing.T) {
	pub := &fakePublisher{}
	user := "alice"
	n := NewNotifier(pub, func() string { return user }, zerolog.Nop())

	n.Notify(chat.Message{From: "bob", Text: "hi"})
	assert.Equal(t, "chat.notify.alice", pub.subject)

	user = "carol"
	n.Notify(chat.Message{From: "bob", Text: "hi"})
	assert.Equal(t, "chat.notify.carol", pub.subject)
}

func TestDecodeNotification(t *testing.T) {
	n, err := DecodeNotification([]byte(`{"from":"bob","text":"hi","image":true}`))
	require.NoError(t, err)
	assert.Equal(t, "bob", n.From)
	assert.True(t, n.Image)

	_, err = DecodeNotification([]byte("not json"))
	assert.Error(t, err)
}

func TestNotifySubject(t *testing.T) {
	assert.Equal(t, "chat.notify.alice", NotifySubject("alice"))
	assert.Equal(t, "chat.notify.a_b_c_d", NotifySubject("a.b c*d"))
	assert.Equal(t, "chat.notify._", NotifySubject(""))
}

// TestNATSClient_RoundTrip requires a running NATS server on localhost:4222.
func TestNATSClient_RoundTrip(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.MaxReconnects = 0
	client, err := NewNATSClient(cfg, zerolog.Nop())
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	defer client.Close()

	got := make(chan []byte, 1)
	subject := NotifySubject("test_roundtrip")
	require.NoError(t, client.Subscribe(subject, func(data []byte) { got <- data }))
	require.NoError(t, client.Flush())

	NewNotifier(client, func() string { return "test_roundtrip" }, zerolog.Nop()).Notify(chat.Message{From: "bob", Text: "hi"})

	select {
	case data := <-got:
		n, err := DecodeNotification(data)
		require.NoError(t, err)
		assert.Equal(t, "hi", n.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	require.NoError(t, client.Unsubscribe(subject))
}
