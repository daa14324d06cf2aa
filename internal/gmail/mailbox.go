package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	netmail "net/mail"
	"strings"
	"time"

	"newsletter-digest/internal/cleaner"
	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/mailparse"
	"newsletter-digest/internal/models"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	maxResults  = 50
	unreadLabel = "UNREAD"
)

// Mailbox reads newsletters from and sends digests through one Gmail account
type Mailbox struct {
	srv  *gmail.Service
	from string
}

// NewMailbox wraps srv. from is the sender address on outgoing digests; empty lets Gmail fill it in.
func NewMailbox(srv *gmail.Service, from string) *Mailbox {
	return &Mailbox{srv: srv, from: from}
}

func (m *Mailbox) ListUnreadSince(ctx context.Context, since time.Time, label string, senderKeywords []string) ([]string, error) {
	resp, err := m.srv.Users.Messages.List(user).
		Q(Query(since, label, senderKeywords)).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("gmail.list", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

func (m *Mailbox) GetFull(ctx context.Context, ref string) (*models.RawMessage, error) {
	msg, err := m.srv.Users.Messages.Get(user, ref).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, classify("gmail.get", err)
	}
	return Convert(msg), nil
}

// MarkProcessed removes the UNREAD label
func (m *Mailbox) MarkProcessed(ctx context.Context, ref string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabel}}
	if _, err := m.srv.Users.Messages.Modify(user, ref, req).Context(ctx).Do(); err != nil {
		return classify("gmail.modify", err)
	}
	return nil
}

func (m *Mailbox) SendDocument(ctx context.Context, recipient, subject, html string) error {
	raw, err := BuildMessage(m.from, recipient, subject, html, time.Now())
	if err != nil {
		return failure.New(failure.KindDelivery, "gmail.send", err)
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := m.srv.Users.Messages.Send(user, msg).Context(ctx).Do(); err != nil {
		return classify("gmail.send", err)
	}
	return nil
}

// Query builds the Gmail search expression for unread labelled mail after since
func Query(since time.Time, label string, senderKeywords []string) string {
	var sb strings.Builder
	sb.WriteString("is:unread")
	if label != "" {
		// Gmail search spells spaces in label names as dashes
		sb.WriteString(" label:" + strings.ReplaceAll(strings.TrimSpace(label), " ", "-"))
	}
	sb.WriteString(" after:" + since.Format("2006/01/02"))

	var from []string
	for _, kw := range senderKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			from = append(from, "from:"+kw)
		}
	}
	if len(from) > 0 {
		sb.WriteString(" (" + strings.Join(from, " OR ") + ")")
	}
	return sb.String()
}

// Convert maps a Gmail API message onto the provider-neutral RawMessage
func Convert(msg *gmail.Message) *models.RawMessage {
	raw := &models.RawMessage{ID: msg.Id}
	if msg.InternalDate > 0 {
		raw.SentAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return raw
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			raw.Sender = h.Value
		case "subject":
			subject, err := mailparse.DecodeHeader(h.Value)
			if err != nil {
				subject = h.Value
			}
			raw.Subject = subject
		case "date":
			if raw.SentAt.IsZero() {
				if t, err := netmail.ParseDate(h.Value); err == nil {
					raw.SentAt = t
				}
			}
		}
	}
	raw.Payload = convertPart(msg.Payload)
	return raw
}

func convertPart(p *gmail.MessagePart) *models.BodyPart {
	part := &models.BodyPart{MimeType: p.MimeType}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, convertPart(child))
		}
	}
	return part
}

// BuildMessage renders an RFC 822 multipart/alternative message with a plain text fallback
func BuildMessage(from, to, subject, html string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(subject)
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}

	var buf bytes.Buffer
	mw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", cleaner.Sanitize(html)},
		{"text/html", html},
	}
	for _, p := range parts {
		var ph mail.InlineHeader
		ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		ph.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// classify tags rate limits and server errors as transient
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return failure.New(failure.KindTransientIO, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if failure.IsTransient(err) {
		return failure.New(failure.KindTransientIO, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
