package chat

import "time"

// SystemSender is the display name used for frames the client could not
// decode as an envelope.
const SystemSender = "System"

// Message is one entry of the rendered conversation.
type Message struct {
	From    string    `json:"from"`
	Text    string    `json:"text"`
	Image   string    `json:"image,omitempty"`   // inline data URL
	Sticker bool      `json:"sticker,omitempty"` // render Text as a large glyph
	At      time.Time `json:"at"`
	Own     bool      `json:"-"` // sent by the local user
	System  bool      `json:"-"` // synthetic, from an undecodable frame
}

// HasImage reports whether the message carries an inline image.
func (m Message) HasImage() bool {
	return m.Image != ""
}
