package gmail

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/mailparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func TestQuery(t *testing.T) {
	since := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		label    string
		keywords []string
		expected string
	}{
		{"with keywords", "Newsletter", []string{"tldr", "deeplearning.ai"}, "is:unread label:Newsletter after:2025/06/01 (from:tldr OR from:deeplearning.ai)"},
		{"no keywords", "Newsletter", nil, "is:unread label:Newsletter after:2025/06/01"},
		{"blank keywords skipped", "Newsletter", []string{" ", "tldr"}, "is:unread label:Newsletter after:2025/06/01 (from:tldr)"},
		{"label with spaces", "AI News", nil, "is:unread label:AI-News after:2025/06/01"},
		{"no label", "", []string{"a"}, "is:unread after:2025/06/01 (from:a)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Query(since, tt.label, tt.keywords); got != tt.expected {
				t.Errorf("Query() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	msg := &gmail.Message{
		Id:           "18f0a",
		InternalDate: 1748851200000,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "TLDR AI <dan@tldrnewsletter.com>"},
				{Name: "Subject", Value: "=?UTF-8?B?SGVsbG8gV29ybGQ=?="},
				{Name: "Date", Value: "Mon, 02 Jun 2025 08:00:00 +0000"},
			},
			Body: &gmail.MessagePartBody{},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: mailparse.EncodeData([]byte("plain"))}},
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: mailparse.EncodeData([]byte("<p>html</p>"))}},
			},
		},
	}

	raw := Convert(msg)

	assert.Equal(t, "18f0a", raw.ID)
	assert.Equal(t, "TLDR AI <dan@tldrnewsletter.com>", raw.Sender)
	assert.Equal(t, "Hello World", raw.Subject)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), raw.SentAt)
	require.NotNil(t, raw.Payload)
	require.Len(t, raw.Payload.Parts, 2)
	assert.True(t, raw.Payload.IsContainer())

	body, err := mailparse.Extract(raw.Payload)
	require.NoError(t, err)
	assert.Equal(t, "<p>html</p>", body)
}

func TestConvertWithoutPayload(t *testing.T) {
	raw := Convert(&gmail.Message{Id: "x"})

	assert.Equal(t, "x", raw.ID)
	assert.Nil(t, raw.Payload)
}

func TestBuildMessage(t *testing.T) {
	html := "<html><body><h1>Today</h1><p>Café news</p></body></html>"

	raw, err := BuildMessage("digest@example.com", "reader@example.com", "Models get smaller", html, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	parsed, err := mailparse.ParseRFC822(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Models get smaller", parsed.Subject)
	assert.Contains(t, parsed.Sender, "digest@example.com")
	assert.True(t, strings.HasPrefix(parsed.Payload.MimeType, "multipart/alternative"))

	body, err := mailparse.Extract(parsed.Payload)
	require.NoError(t, err)
	assert.Equal(t, html, body)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"server error", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, false},
		{"plain error", errors.New("bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("gmail.get", tt.err)
			assert.Equal(t, tt.transient, failure.IsTransient(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
