package mailparse

import (
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"newsletter-digest/internal/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

var emailAddressRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// ParseIMAP converts a fetched IMAP message into a RawMessage keyed by its UID
func ParseIMAP(msg *imap.Message) (*models.RawMessage, error) {
	section := &imap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return nil, io.EOF
	}

	raw, err := ParseRFC822(r)
	if err != nil {
		return nil, err
	}

	raw.ID = fmt.Sprint(msg.Uid)
	if raw.SentAt.IsZero() {
		raw.SentAt = msg.InternalDate
	}
	return raw, nil
}

// ParseRFC822 reads a raw message and builds its part tree. Leaf payloads are
// transfer-decoded, converted to UTF-8 and stored base64url encoded.
func ParseRFC822(r io.Reader) (*models.RawMessage, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	header := mail.Header{Header: entity.Header}

	raw := &models.RawMessage{
		Sender: header.Get("From"),
	}

	subject, err := DecodeHeader(header.Get("Subject"))
	if err != nil {
		subject = header.Get("Subject")
	}
	raw.Subject = subject

	if date, err := header.Date(); err == nil {
		raw.SentAt = date
	}

	payload, err := buildPart(entity)
	if err != nil {
		return nil, err
	}
	raw.Payload = payload

	return raw, nil
}

func buildPart(e *message.Entity) (*models.BodyPart, error) {
	mediaType, _, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = mimePlain
	}

	part := &models.BodyPart{MimeType: mediaType}

	if mr := e.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			} else if err != nil && !message.IsUnknownCharset(err) {
				return nil, err
			}
			child, err := buildPart(p)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, child)
		}
		return part, nil
	}

	if !strings.HasPrefix(mediaType, "text/") {
		// attachments and inline images carry no newsletter text
		return part, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		part.Data = EncodeData(body)
	}
	return part, nil
}

// ExtractEmailAddress pulls the bare address out of a "Name <addr>" header value
func ExtractEmailAddress(fromHeader string) string {
	return emailAddressRe.FindString(fromHeader)
}

// DisplayName returns the name portion of a From header, falling back to the address
func DisplayName(fromHeader string) string {
	if addr, err := mail.ParseAddress(fromHeader); err == nil && addr.Name != "" {
		return addr.Name
	}
	if addr := ExtractEmailAddress(fromHeader); addr != "" {
		return addr
	}
	return strings.TrimSpace(fromHeader)
}

// DecodeHeader decodes MIME-encoded headers (e.g., "=?UTF-8?B?...?=") to plain text
func DecodeHeader(encoded string) (string, error) {
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return "", err
	}
	return decoded, nil
}
