package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/config"
	"github.com/whisper/chat-client/internal/messaging"
	"github.com/whisper/chat-client/internal/session"
)

// chatServer fakes the auth API and the chat endpoint. Frames received on
// the socket are pushed to frames.
type chatServer struct {
	*httptest.Server
	tokens chan string
	frames chan map[string]interface{}
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	s := &chatServer{
		tokens: make(chan string, 4),
		frames: make(chan map[string]interface{}, 16),
	}
	upgrader := websocket.Upgrader{}

	r := chi.NewRouter()
	r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)
		w.Header().Set("Content-Type", "application/json")
		if creds.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-" + creds.Username,
			"token_type":   "bearer",
		})
	})
	r.Get("/ws/{token}", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		s.tokens <- chi.URLParam(r, "token")
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]interface{}
			if json.Unmarshal(data, &m) == nil {
				s.frames <- m
			}
		}
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) nextFrame(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case m := <-s.frames:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagUser, flagPassword, flagSticker, flagImage = "", "", "", ""
	t.Setenv("CHAT_CONFIG", "")
	t.Setenv("CHAT_PASSWORD", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSendText(t *testing.T) {
	srv := newChatServer(t)
	_, err := execute(t, "send", "--server", srv.URL, "--token-store", "memory",
		"-u", "alice", "-p", "pw", "hello", "world")
	require.NoError(t, err)

	assert.Equal(t, "tok-alice", <-srv.tokens)
	m := srv.nextFrame(t)
	assert.Equal(t, "message", m["type"])
	assert.Equal(t, "hello world", m["message"])
	assert.Equal(t, false, m["isSticker"])
}

func TestSendSticker(t *testing.T) {
	srv := newChatServer(t)
	_, err := execute(t, "send", "--server", srv.URL, "--token-store", "memory",
		"-u", "alice", "-p", "pw", "--sticker", "fire")
	require.NoError(t, err)

	m := srv.nextFrame(t)
	assert.Equal(t, "🔥", m["message"])
	assert.Equal(t, true, m["isSticker"])
}

func TestSendImage(t *testing.T) {
	srv := newChatServer(t)
	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))

	_, err := execute(t, "send", "--server", srv.URL, "--token-store", "memory",
		"-u", "alice", "-p", "pw", "--image", path)
	require.NoError(t, err)

	m := srv.nextFrame(t)
	assert.Equal(t, "", m["message"])
	assert.Contains(t, m["image"], "data:image/png;base64,")
}

func TestSendImageTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.png")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, os.Truncate(path, chat.MaxImageBytes+1))

	_, err := execute(t, "send", "--server", "http://127.0.0.1:1", "--token-store", "memory",
		"-u", "alice", "-p", "pw", "--image", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrImageTooLarge)
}

func TestSendWrongPassword(t *testing.T) {
	srv := newChatServer(t)
	_, err := execute(t, "send", "--server", srv.URL, "--token-store", "memory",
		"-u", "alice", "-p", "nope", "hi")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestSendNothing(t *testing.T) {
	_, err := execute(t, "send", "--server", "http://127.0.0.1:1", "--token-store", "memory",
		"-u", "alice", "-p", "pw", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to send")
}

func TestRegister(t *testing.T) {
	srv := newChatServer(t)
	out, err := execute(t, "register", "--server", srv.URL, "--token-store", "memory",
		"-u", "bob", "-p", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "registered bob")
}

func TestRegisterRejectsLongPassword(t *testing.T) {
	_, err := execute(t, "register", "--server", "http://127.0.0.1:1", "--token-store", "memory",
		"-u", "bob", "-p", string(bytes.Repeat([]byte("x"), 73)))
	require.Error(t, err)
	assert.Equal(t, "Password must be at most 72 bytes", err.Error())
}

func TestOpenTokenStore(t *testing.T) {
	store, err := openTokenStore(config.TokenConfig{Store: config.StoreMemory})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	dir := filepath.Join(t.TempDir(), "nested", "token")
	store, err = openTokenStore(config.TokenConfig{Store: config.StorePebble, Path: dir})
	require.NoError(t, err)
	require.NoError(t, store.Save(t.Context(), "tok"))
	require.NoError(t, store.Close())

	_, err = openTokenStore(config.TokenConfig{Store: "floppy"})
	assert.Error(t, err)
}

func TestConsoleView(t *testing.T) {
	var out bytes.Buffer
	v := &consoleView{out: &out, logger: zerolog.Nop()}

	v.Render(chat.Message{From: "bob", Text: "hi"})
	v.Render(chat.Message{From: "bob", Image: chat.EncodeDataURL("image/png", []byte{1, 2, 3})})
	assert.Equal(t, "bob: hi\nbob: [image/png, 3 bytes]\n", out.String())

	assert.Empty(t, v.lastError())
	v.ShowNotice(session.Notice{Level: session.NoticeError, Text: "Connection to chat lost"})
	v.ShowNotice(session.Notice{Level: session.NoticeInfo, Text: "fine"})
	assert.Equal(t, "Connection to chat lost", v.lastError())
}

func TestWatchNeedsNATSAndUser(t *testing.T) {
	t.Setenv("CHAT_NATS_URL", "")
	_, err := execute(t, "watch", "-u", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats")

	_, err = execute(t, "watch", "--nats-url", "nats://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
}

func TestPrintNotification(t *testing.T) {
	var out bytes.Buffer
	printNotification(&out, messaging.Notification{From: "bob", Text: "hi"})
	printNotification(&out, messaging.Notification{From: "bob", Image: true})
	printNotification(&out, messaging.Notification{From: "bob", Text: "look", Image: true})
	assert.Equal(t, "bob: hi\nbob: [image]\nbob: [image] look\n", out.String())
}
