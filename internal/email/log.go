package email

import (
	"context"

	"newsletter-digest/internal/logging"
)

// LogSender logs emails instead of sending them.
// Useful for development and testing.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	logging.Log.WithField("to", msg.To).
		WithField("subject", msg.Subject).
		WithField("html_bytes", len(msg.HTML)).
		Info("EMAIL (dev mode - not actually sent)")
	return nil
}
