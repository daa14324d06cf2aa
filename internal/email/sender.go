// Package email provides digest sending with pluggable providers.
package email

import (
	"context"

	"newsletter-digest/internal/mailbox"
)

// Message represents an email message to be sent.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string // Plain text fallback
}

// Sender is the interface for email providers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendingMailbox struct {
	mailbox.Mailbox
	sender Sender
}

// RouteSends returns mb with SendDocument delivered through sender instead of the mail provider
func RouteSends(mb mailbox.Mailbox, sender Sender) mailbox.Mailbox {
	return &sendingMailbox{Mailbox: mb, sender: sender}
}

func (m *sendingMailbox) SendDocument(ctx context.Context, recipient, subject, html string) error {
	return m.sender.Send(ctx, Message{To: recipient, Subject: subject, HTML: html})
}
