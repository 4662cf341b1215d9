package notifier

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Session is one open push channel to a subscriber.
type Session interface {
	ID() string
	IsOpen() bool
	WriteText(data []byte) error
}

// Message is the JSON envelope pushed to subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Sender writes text frames to sessions. Failures are logged and reported, never raised.
type Sender struct {
	logger zerolog.Logger
}

func NewSender(logger zerolog.Logger) *Sender {
	return &Sender{logger: logger}
}

// Send returns false when session is nil, closed, or the write fails.
func (s *Sender) Send(session Session, message string) bool {
	if session == nil {
		s.logger.Error().Msg("[send] session is nil")
		return false
	}
	if !session.IsOpen() {
		s.logger.Error().Str("session", session.ID()).Msg("[send] session is closed")
		return false
	}
	if err := session.WriteText([]byte(message)); err != nil {
		s.logger.Error().Err(err).Str("session", session.ID()).Str("message", message).Msg("[send] write failed")
		return false
	}
	return true
}

// SendJSON marshals v and sends it as a single text frame.
func (s *Sender) SendJSON(session Session, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("[send] marshal failed")
		return false
	}
	return s.Send(session, string(data))
}
