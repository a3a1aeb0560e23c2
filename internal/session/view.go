package session

import (
	"context"
	"errors"
	"net"

	"github.com/whisper/chat-client/internal/auth"
	"github.com/whisper/chat-client/internal/chat"
)

// NoticeLevel tells the view how to style a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a transient message for the user. The view dismisses it on its
// own after a short time.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// View is everything the session needs from the user interface. Methods may
// be called from any goroutine but never while the session holds its lock,
// so an implementation may call back into the session.
type View interface {
	Render(msg chat.Message)
	SetRoster(users []string)
	SetTypingText(text string)
	ShowChat()
	ShowLogin()
	ShowNotice(n Notice)
	ClearInput()
}

// Notifier is told about incoming messages from other users.
type Notifier interface {
	Notify(msg chat.Message)
}

// Fixed notice texts.
const (
	textDisconnected = "Connection to chat lost"
	textNotConnected = "Not connected to chat"
	textRegistered   = "Registration successful, you can log in now"
	textServerDown   = "Could not reach the server"
	textFailed       = "Something went wrong, please try again"
)

// errorNotice turns an error into the text shown to the user.
func errorNotice(err error) Notice {
	var (
		apiErr *auth.Error
		netErr net.Error
	)
	text := textFailed
	switch {
	case errors.As(err, &apiErr):
		text = apiErr.Detail
	case errors.Is(err, auth.ErrEmptyCredentials):
		text = "Username and password are required"
	case errors.Is(err, auth.ErrPasswordTooLong):
		text = "Password must be at most 72 bytes"
	case errors.Is(err, chat.ErrNotImage):
		text = "Only image files can be sent"
	case errors.Is(err, chat.ErrImageTooLarge):
		text = "Image must be 5 MiB or smaller"
	case errors.Is(err, ErrNotConnected):
		text = textNotConnected
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		text = textServerDown
	}
	return Notice{Level: NoticeError, Text: text}
}
