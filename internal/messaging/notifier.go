package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/whisper/chat-client/internal/chat"
)

// Publisher is the subset of NATSClient the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notification is the JSON body published for each incoming message.
type Notification struct {
	From    string    `json:"from"`
	Text    string    `json:"text"`
	Sticker bool      `json:"sticker"`
	Image   bool      `json:"image"`
	At      time.Time `json:"at"`
}

// Notifier publishes incoming chat messages for a local user.
type Notifier struct {
	pub       Publisher
	recipient func() string
	logger    zerolog.Logger
}

// NewNotifier publishes to chat.notify.<recipient>. The recipient is
// resolved on every notification since the user is only known after login.
func NewNotifier(pub Publisher, recipient func() string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		pub:       pub,
		recipient: recipient,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// NotifySubject returns the subject notifications for username go to.
// Characters NATS treats as separators or wildcards become underscores.
func NotifySubject(username string) string {
	token := strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, username)
	if token == "" {
		token = "_"
	}
	return SubjectNotify + "." + token
}

// DecodeNotification parses a published notification.
func DecodeNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("messaging: decode notification: %w", err)
	}
	return n, nil
}

// Notify publishes m. Failures are logged; a notification is never worth
// interrupting the chat.
func (n *Notifier) Notify(m chat.Message) {
	data, err := json.Marshal(Notification{
		From:    m.From,
		Text:    m.Text,
		Sticker: m.Sticker,
		Image:   m.HasImage(),
		At:      m.At,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("[notify] marshal failed")
		return
	}
	subject := NotifySubject(n.recipient())
	if err := n.pub.Publish(subject, data); err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Msg("[notify] publish failed")
	}
}
