package mailparse

import (
	"testing"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(mimeType, body string) *models.BodyPart {
	p := &models.BodyPart{MimeType: mimeType}
	if body != "" {
		p.Data = EncodeData([]byte(body))
	}
	return p
}

func container(parts ...*models.BodyPart) *models.BodyPart {
	return &models.BodyPart{MimeType: "multipart/mixed", Parts: parts}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		part *models.BodyPart
		want string
	}{
		{
			name: "nil part",
			part: nil,
			want: "",
		},
		{
			name: "single leaf",
			part: leaf("text/plain", "hello"),
			want: "hello",
		},
		{
			name: "html preferred over plain regardless of order",
			part: container(leaf("text/plain", "P"), leaf("text/html", "<p>H</p>")),
			want: "<p>H</p>",
		},
		{
			name: "plain when no html",
			part: container(leaf("text/plain", "P"), leaf("image/png", "")),
			want: "P",
		},
		{
			name: "first html leaf wins",
			part: container(leaf("text/html", "first"), leaf("text/html", "second")),
			want: "first",
		},
		{
			name: "html leaf without payload is ignored",
			part: container(leaf("text/html", ""), leaf("text/plain", "P")),
			want: "P",
		},
		{
			name: "mime type parameters are ignored",
			part: container(leaf("text/html; charset=UTF-8", "H")),
			want: "H",
		},
		{
			name: "nested container short-circuits",
			part: container(container(leaf("text/plain", "deep")), leaf("text/html", "shallow")),
			want: "deep",
		},
		{
			name: "single character nested result still short-circuits",
			part: container(container(leaf("text/plain", "x")), leaf("text/html", "<b>rich</b>")),
			want: "x",
		},
		{
			name: "empty nested container falls through to siblings",
			part: container(container(leaf("text/html", "")), leaf("text/plain", "P")),
			want: "P",
		},
		{
			name: "nothing resolves",
			part: container(leaf("application/pdf", ""), container()),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.part)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractMalformedPayload(t *testing.T) {
	part := container(&models.BodyPart{MimeType: "text/html", Data: "!!!not base64!!!"})

	_, err := Extract(part)

	require.Error(t, err)
	assert.Equal(t, failure.KindDecode, failure.KindOf(err))
}

func TestDecodeDataVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"url alphabet padded", "b2s_Pn4="},
		{"url alphabet unpadded", "b2s_Pn4"},
		{"standard alphabet", "b2s/Pn4="},
		{"line wrapped", "b2s_\r\nPn4="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeData(tt.in)
			require.NoError(t, err)
			assert.Equal(t, "ok?>~", got)
		})
	}
}
