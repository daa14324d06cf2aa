package mailparse

import (
	"strings"
	"testing"
)

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "Plain ASCII",
			input:    "Hello World",
			expected: "Hello World",
			wantErr:  false,
		},
		{
			name:     "UTF-8 encoded",
			input:    "=?UTF-8?Q?La_revue_IA_=C3=A0_lire?=",
			expected: "La revue IA à lire",
			wantErr:  false,
		},
		{
			name:     "ISO-8859-1 encoded",
			input:    "=?ISO-8859-1?Q?Caf=E9?=",
			expected: "Café",
			wantErr:  false,
		},
		{
			name:     "Base64 encoded",
			input:    "=?UTF-8?B?SGVsbG8gV29ybGQ=?=",
			expected: "Hello World",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHeader(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeHeader() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("DecodeHeader() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExtractEmailAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple email",
			input:    "news@deeplearning.ai",
			expected: "news@deeplearning.ai",
		},
		{
			name:     "Email with name",
			input:    "The Batch <news@deeplearning.ai>",
			expected: "news@deeplearning.ai",
		},
		{
			name:     "Email with quotes",
			input:    `"TLDR AI" <dan@tldrnewsletter.com>`,
			expected: "dan@tldrnewsletter.com",
		},
		{
			name:     "No email",
			input:    "Just some text",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEmailAddress(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractEmailAddress() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(`"TLDR AI" <dan@tldrnewsletter.com>`); got != "TLDR AI" {
		t.Errorf("DisplayName() = %q, want %q", got, "TLDR AI")
	}
	if got := DisplayName("dan@tldrnewsletter.com"); got != "dan@tldrnewsletter.com" {
		t.Errorf("DisplayName() = %q, want address", got)
	}
}

const multipartMessage = "From: The Batch <news@deeplearning.ai>\r\n" +
	"To: reader@example.com\r\n" +
	"Subject: =?UTF-8?Q?This_week_in_AI?=\r\n" +
	"Date: Mon, 02 Jun 2025 08:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain version\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"<p>HTML version =E2=80=94 rich</p>\r\n" +
	"--b1--\r\n"

func TestParseRFC822(t *testing.T) {
	raw, err := ParseRFC822(strings.NewReader(multipartMessage))
	if err != nil {
		t.Fatalf("ParseRFC822() error: %v", err)
	}

	if raw.Subject != "This week in AI" {
		t.Errorf("Subject = %q", raw.Subject)
	}
	if ExtractEmailAddress(raw.Sender) != "news@deeplearning.ai" {
		t.Errorf("Sender = %q", raw.Sender)
	}
	if raw.SentAt.IsZero() {
		t.Error("Expected SentAt to be parsed")
	}
	if raw.Payload == nil || len(raw.Payload.Parts) != 2 {
		t.Fatalf("Expected 2 child parts, got %+v", raw.Payload)
	}

	body, err := Extract(raw.Payload)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !strings.Contains(body, "<p>HTML version — rich</p>") {
		t.Errorf("Expected decoded HTML body, got %q", body)
	}
}
