package ws

import (
	"github.com/rs/zerolog"

	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/protocol"
)

// MessageHandler is the callback signature for handling a parsed server
// message. The msg parameter is the concrete struct returned by
// protocol.ParseServerMessage (e.g., protocol.ServerChatMsg).
type MessageHandler func(msg interface{})

// TextHandler receives payloads that were not a JSON envelope.
type TextHandler func(text string)

// MessageDispatcher routes inbound frames to registered handlers based on the
// message type. It answers server pings itself and forwards frames that are
// not JSON to the text handler.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	text     TextHandler
	reply    func([]byte) error
	logger   zerolog.Logger
}

// NewMessageDispatcher creates a MessageDispatcher. reply is used to answer
// pings and is normally the connection's WriteMessage.
func NewMessageDispatcher(reply func([]byte) error, logger zerolog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		reply:    reply,
		logger:   logger,
	}
}

// Register associates a MessageHandler with a message type. If a handler was
// already registered for the given type, it is silently replaced.
func (d *MessageDispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// HandleText sets the handler for raw text frames.
func (d *MessageDispatcher) HandleText(handler TextHandler) {
	d.text = handler
}

// Dispatch parses one inbound payload and routes it. Nothing here returns an
// error: malformed and unknown frames are logged and dropped, raw text goes
// to the text handler.
func (d *MessageDispatcher) Dispatch(data []byte) {
	frame := protocol.ParseEnvelope(data)
	if frame.IsText() {
		metrics.EnvelopesTotal.WithLabelValues(metrics.DirectionIn, "text").Inc()
		if d.text != nil {
			d.text(frame.Text)
		}
		return
	}

	msgType, msg, err := protocol.ParseServerMessage(frame.Envelope)
	if err != nil {
		metrics.EnvelopesTotal.WithLabelValues(metrics.DirectionIn, "unknown").Inc()
		d.logger.Warn().Err(err).Str("type", msgType).Msg("[dispatch] ignoring frame")
		return
	}
	metrics.EnvelopesTotal.WithLabelValues(metrics.DirectionIn, msgType).Inc()

	// Built-in ping handler: respond immediately without requiring registration.
	if msgType == protocol.TypePing {
		d.sendPong()
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		d.logger.Debug().Str("type", msgType).Msg("[dispatch] no handler registered")
		return
	}
	handler(msg)
}

func (d *MessageDispatcher) sendPong() {
	data, err := protocol.NewClientMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		d.logger.Error().Err(err).Msg("[dispatch] failed to build pong")
		return
	}
	if err := d.reply(data); err != nil {
		d.logger.Warn().Err(err).Msg("[dispatch] failed to send pong")
		return
	}
	metrics.EnvelopesTotal.WithLabelValues(metrics.DirectionOut, protocol.TypePong).Inc()
}
