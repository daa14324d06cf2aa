package summarizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCompleter records prompts and replays a canned response
type MockCompleter struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockCompleter) Name() string { return "mock" }

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

var fixedNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func newTestSynthesizer(c Completer) *Synthesizer {
	s := NewSynthesizer(c)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestSynthesizeEmptyBatchSkipsCompleter(t *testing.T) {
	mock := &MockCompleter{}
	s := newTestSynthesizer(mock)

	digest, err := s.Synthesize(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, mock.Prompts)
	assert.Equal(t, EmptyHeadline, digest.Headline)
	assert.Equal(t, "2025-06-02", digest.Date)
	assert.Empty(t, digest.Sections)
	assert.Equal(t, EmptySummary, digest.Summary)
}

func TestSynthesizeCallsCompleterOnce(t *testing.T) {
	mock := &MockCompleter{Response: "```json\n{\"headline\":\"H\",\"date\":\"2025-06-02\",\"sections\":[{\"title\":\"💼 Industry\",\"items\":[{\"title\":\"A\",\"snippet\":\"s\",\"source\":\"TLDR\",\"url\":\"https://a\"}]}],\"summary\":\"S\"}\n```"}
	s := newTestSynthesizer(mock)

	msgs := []models.SanitizedMessage{
		{ID: "1", Sender: "The Batch <news@deeplearning.ai>", Subject: "Issue 1", Body: "first body"},
		{ID: "2", Sender: "dan@tldrnewsletter.com", Subject: "Issue 2", Body: strings.Repeat("z", 5000)},
	}

	digest, err := s.Synthesize(context.Background(), msgs)

	require.NoError(t, err)
	require.Len(t, mock.Prompts, 1)
	assert.Equal(t, "H", digest.Headline)
	require.Len(t, digest.Sections, 1)
	assert.Equal(t, "https://a", digest.Sections[0].Items[0].URL)

	prompt := mock.Prompts[0]
	assert.Contains(t, prompt, "SOURCE: The Batch\nSUBJECT: Issue 1\nCONTENT:\nfirst body")
	assert.Contains(t, prompt, messageSeparator)
	assert.NotContains(t, prompt, strings.Repeat("z", ExcerptLimit+1))
	assert.Contains(t, prompt, strings.Repeat("z", ExcerptLimit))
	assert.Contains(t, prompt, `"date": "2025-06-02"`)
}

func TestSynthesizeCompleterError(t *testing.T) {
	s := newTestSynthesizer(&MockCompleter{Err: errors.New("quota")})

	_, err := s.Synthesize(context.Background(), []models.SanitizedMessage{{ID: "1"}})

	require.Error(t, err)
	assert.Equal(t, failure.KindTransientIO, failure.KindOf(err))
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		headline string
	}{
		{
			name:     "fenced json",
			input:    "Here you go:\n```json\n{\"headline\":\"Fenced\",\"sections\":[]}\n```\nthanks",
			headline: "Fenced",
		},
		{
			name:     "bare fence",
			input:    "```\n{\"headline\":\"Bare\",\"sections\":[]}\n```",
			headline: "Bare",
		},
		{
			name:     "raw json",
			input:    `  {"headline":"Raw","date":"2025-06-02","sections":[{"title":"x","items":[]}]}  `,
			headline: "Raw",
		},
		{
			name:     "nested objects inside fence",
			input:    "```json\n{\"headline\":\"Nested\",\"sections\":[{\"title\":\"t\",\"items\":[{\"title\":\"a\"}]}]}\n```",
			headline: "Nested",
		},
		{
			name:    "prose",
			input:   "Sorry, I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "broken fenced json",
			input:   "```json\n{\"headline\": }\n```",
			wantErr: true,
		},
		{
			name:    "json without digest fields",
			input:   `{"foo":"bar"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, err := ParseResponse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, failure.KindParse, failure.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.headline, digest.Headline)
			assert.NotNil(t, digest.Sections)
		})
	}
}

func TestItemSummaryField(t *testing.T) {
	digest, err := ParseResponse(`{"headline":"h","sections":[{"title":"t","items":[{"title":"a","summary":"from summary","image_url":"https://img"}]}]}`)

	require.NoError(t, err)
	item := digest.Sections[0].Items[0]
	assert.Equal(t, "from summary", item.Summary)
	assert.Equal(t, "https://img", item.ImageURL)
}

func TestGeminiClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"headline\":"},{"text":"\"x\"}"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGeminiClient("k", "", time.Second)
	g.baseURL = srv.URL + "/"

	out, err := g.Complete(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, `{"headline":"x"}`, out)
}

func TestGeminiClientClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		g := NewGeminiClient("k", "m", time.Second)
		g.baseURL = srv.URL + "/"
		_, err := g.Complete(context.Background(), "p")
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, tt.transient, failure.IsTransient(err), "status %d", tt.status)
	}
}

func TestOllamaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = w.Write([]byte(`{"response":"{\"headline\":\"o\"}","done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllamaClient(srv.URL, "", time.Second).Complete(context.Background(), "p")

	require.NoError(t, err)
	assert.Equal(t, `{"headline":"o"}`, out)
}

func TestFallbackCompleter(t *testing.T) {
	down := &MockCompleter{Err: failure.New(failure.KindTransientIO, "gemini", errors.New("429"))}
	backup := &MockCompleter{Response: "ok"}

	out, err := NewFallbackCompleter(down, backup).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	bad := &MockCompleter{Err: errors.New("invalid key")}
	unused := &MockCompleter{Response: "never"}
	_, err = NewFallbackCompleter(bad, unused).Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Empty(t, unused.Prompts)
}

type flakyCompleter struct {
	failures int
	calls    int
}

func (f *flakyCompleter) Name() string { return "flaky" }

func (f *flakyCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", failure.New(failure.KindTransientIO, "flaky", errors.New("503"))
	}
	return "done", nil
}

func TestWithRetry(t *testing.T) {
	flaky := &flakyCompleter{failures: 2}
	c := WithRetry(flaky, retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 2})

	out, err := c.Complete(context.Background(), "p")

	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, "flaky", c.Name())
}
