package models

import "time"

// BodyPart is one node of a message's MIME tree. Data holds the base64url encoded payload.
type BodyPart struct {
	MimeType string
	Data     string
	Parts    []*BodyPart
}

// IsContainer reports whether the part has children
func (p *BodyPart) IsContainer() bool {
	return p != nil && len(p.Parts) > 0
}

// RawMessage represents a message as returned by the mail provider
type RawMessage struct {
	ID      string
	Sender  string
	Subject string
	SentAt  time.Time
	Payload *BodyPart
}

// ExtractedMessage carries the resolved text body of a RawMessage
type ExtractedMessage struct {
	ID      string
	Sender  string
	Subject string
	SentAt  time.Time
	Body    string
}

// SanitizedMessage is an ExtractedMessage whose body has been cleaned and truncated
type SanitizedMessage struct {
	ID      string
	Sender  string
	Subject string
	SentAt  time.Time
	Body    string
}
