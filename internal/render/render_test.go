package render

import (
	"strings"
	"testing"

	"newsletter-digest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDigest() *models.Digest {
	return &models.Digest{
		Headline: "GPUs & Gradients",
		Date:     "2025-06-02",
		Summary:  "A busy day.",
		Sections: []models.Section{
			{
				Title: "🔬 Research Highlights",
				Items: []models.DigestItem{
					{Title: "Paper A", Snippet: "New attention variant", Source: "The Batch", URL: "https://example.com/a"},
					{Title: "Paper B", Summary: "Summary only", Source: "TLDR"},
				},
			},
		},
	}
}

func TestRender(t *testing.T) {
	out, err := Render(sampleDigest(), Options{UnsubscribeURL: "https://digest.example.com/unsubscribe"})
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>GPUs &amp; Gradients</h1>")
	assert.Contains(t, out, "2025-06-02")
	assert.Contains(t, out, "A busy day.")
	assert.Contains(t, out, "🔬 Research Highlights")
	assert.Contains(t, out, `<a href="https://example.com/a">Paper A</a>`)
	assert.Contains(t, out, "New attention variant")
	assert.Contains(t, out, "Source: The Batch")
	assert.Contains(t, out, `href="https://digest.example.com/unsubscribe"`)
}

func TestRenderMissingOptionalFields(t *testing.T) {
	out, err := Render(sampleDigest(), Options{})
	require.NoError(t, err)

	assert.Contains(t, out, `<a href="#">Paper B</a>`)
	assert.Contains(t, out, "Summary only")
	assert.Contains(t, out, "<title>ML Daily Digest</title>")
}

func TestRenderEmptyDigest(t *testing.T) {
	out, err := Render(&models.Digest{Headline: "No newsletters today", Date: "2025-06-02"}, Options{})
	require.NoError(t, err)

	assert.Contains(t, out, "No newsletters today")
	assert.NotContains(t, out, `class="section"`)
	assert.NotContains(t, out, `class="summary"`)
}

func TestRenderDeterministic(t *testing.T) {
	a, err := Render(sampleDigest(), Options{})
	require.NoError(t, err)
	b, err := Render(sampleDigest(), Options{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "<!DOCTYPE html>"))
}

func TestRenderEscapesScriptURLs(t *testing.T) {
	d := &models.Digest{Sections: []models.Section{{Title: "x", Items: []models.DigestItem{{Title: "t", URL: "javascript:alert(1)"}}}}}

	out, err := Render(d, Options{})
	require.NoError(t, err)

	assert.NotContains(t, out, "javascript:alert")
}
