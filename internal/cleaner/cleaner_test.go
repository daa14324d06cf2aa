package cleaner

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"newsletter-digest/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text is only normalized",
			input:    "  Hello   world  \n\n\n\n  second\tline  ",
			expected: "Hello world\n\nsecond line",
		},
		{
			name:     "scripts and styles are dropped",
			input:    `<html><head><title>t</title><style>p{}</style></head><body><script>alert(1)</script><p>Keep me</p></body></html>`,
			expected: "Keep me",
		},
		{
			name:     "block elements become paragraphs",
			input:    `<div>First</div><div>Second <b>bold</b></div>`,
			expected: "First\n\nSecond bold",
		},
		{
			name:     "br becomes a newline",
			input:    `<p>line one<br>line two</p>`,
			expected: "line one\nline two",
		},
		{
			name:     "nav header footer are noise",
			input:    `<header>Logo</header><nav>Menu</nav><p>Story</p><footer>Unsubscribe</footer>`,
			expected: "Story",
		},
		{
			name:     "entities are decoded",
			input:    `<p>Fish &amp; chips&nbsp;today</p>`,
			expected: "Fish & chips today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestTruncateUnderBudget(t *testing.T) {
	text := "short text"
	assert.Equal(t, text, Truncate(text, 100))
}

func TestTruncateBound(t *testing.T) {
	paragraphs := []string{
		words(40, "alpha"),
		words(40, "beta"),
		words(40, "gamma"),
		words(40, "delta"),
	}
	text := strings.Join(paragraphs, "\n\n")

	for _, budget := range []int{0, 1, 10, 100, 250, 500, 1000} {
		out := Truncate(text, budget)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), budget+utf8.RuneCountInString(TruncationMarker), "budget %d", budget)
	}
}

func TestTruncateIdempotent(t *testing.T) {
	inputs := []string{
		strings.Join([]string{words(50, "one"), words(50, "two"), words(50, "three")}, "\n\n"),
		strings.Repeat("x", 5000),
		"   \n\n   ",
		words(30, "ünïcødé"),
	}

	for _, in := range inputs {
		for _, budget := range []int{0, 5, 64, 300} {
			once := Truncate(in, budget)
			assert.Equal(t, once, Truncate(once, budget), "budget %d", budget)
		}
	}
}

func TestTruncateProtectsLeadingParagraphs(t *testing.T) {
	text := strings.Join([]string{
		"Hi",                          // short, but protected as paragraph 0
		"Unsubscribe here",            // boilerplate phrase, but protected as paragraph 1
		"Ok",                          // short: skipped
		"Privacy policy and cookies.", // boilerplate: skipped
		words(20, "content"),
		words(200, "filler"),
	}, "\n\n")

	out := Truncate(text, 200)

	assert.True(t, strings.HasPrefix(out, "Hi\n\nUnsubscribe here\n\ncontent"), out)
	assert.NotContains(t, out, "Ok\n")
	assert.NotContains(t, out, "Privacy policy")
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
}

func TestTruncatePartialParagraph(t *testing.T) {
	text := words(10, "lead") + "\n\n" + words(100, "body")

	out := Truncate(text, 80)

	assert.True(t, strings.HasPrefix(out, words(10, "lead")+"\n\nbody"))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimSuffix(out, TruncationMarker)), 80)
}

func TestTruncateHardCut(t *testing.T) {
	text := strings.Repeat("a", 50)

	out := Truncate(text, 10)

	assert.Equal(t, strings.Repeat("a", 10), strings.TrimSuffix(out, TruncationMarker))
}

func TestTruncateWhitespaceOnlyFallsBackToHardCut(t *testing.T) {
	out := Truncate("   \n\n   \n\n    ", 3)
	assert.Equal(t, "...", out)
}

func TestTruncateNegativeBudget(t *testing.T) {
	out := Truncate("some words here", -5)
	assert.Equal(t, "...", out)
}

func TestTruncateLookalikeInputIsStillCut(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"ellipsis ending", "Read more in our next issue..."},
		{"marker ending with long body", words(20, "body") + TruncationMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Truncate(tt.text, 27)

			assert.NotEqual(t, tt.text, out)
			assert.True(t, strings.HasSuffix(out, TruncationMarker), out)
			assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimSuffix(out, TruncationMarker)), 27)
			assert.Equal(t, out, Truncate(out, 27))
		})
	}
}

func TestCleanKeepsHeaders(t *testing.T) {
	sent := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	in := models.ExtractedMessage{
		ID:      "m1",
		Sender:  "The Batch <batch@example.com>",
		Subject: "Weekly",
		SentAt:  sent,
		Body:    "<p>" + words(40, "news") + "</p><script>x()</script>",
	}

	out := Clean(in, 50)

	assert.Equal(t, "m1", out.ID)
	assert.Equal(t, in.Sender, out.Sender)
	assert.Equal(t, "Weekly", out.Subject)
	assert.Equal(t, sent, out.SentAt)
	assert.NotContains(t, out.Body, "<p>")
	assert.NotContains(t, out.Body, "x()")
	assert.True(t, strings.HasSuffix(out.Body, TruncationMarker), out.Body)
}
