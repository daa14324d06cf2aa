package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/mailparse"
	"newsletter-digest/internal/models"
)

const (
	// ExcerptLimit caps each message body inside the prompt
	ExcerptLimit = 2000

	messageSeparator = "\n\n---EMAIL_SEPARATOR---\n\n"

	EmptyHeadline = "No newsletters today"
	EmptySummary  = "No matching newsletter emails were found for this run."
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

const instructions = `You are curating a daily machine learning digest for students and practitioners.
Read the newsletters below and extract the most useful items into these sections:

1. Research: new papers, models, techniques
2. Industry: product launches, funding, company news
3. Learning: tutorials, courses, tools, datasets
4. Events: conferences, deadlines, webinars
5. Commentary: notable opinions and analysis

Skip empty sections. Keep every snippet to one or two sentences and keep the original link when there is one.

Newsletters:
%s

Answer with JSON only, in exactly this shape:
{
  "headline": "Brief catchy headline",
  "date": "%s",
  "sections": [
    {
      "title": "🔬 Research Highlights",
      "items": [
        {"title": "...", "snippet": "...", "source": "...", "url": "..."}
      ]
    }
  ],
  "summary": "One paragraph overview"
}`

// Synthesizer condenses sanitized messages into a Digest with a single completion call
type Synthesizer struct {
	completer Completer
	now       func() time.Time
}

func NewSynthesizer(c Completer) *Synthesizer {
	return &Synthesizer{completer: c, now: time.Now}
}

// Synthesize builds the prompt, calls the completer once and parses its output.
// An empty batch returns EmptyDigest without calling the completer.
func (s *Synthesizer) Synthesize(ctx context.Context, messages []models.SanitizedMessage) (*models.Digest, error) {
	if len(messages) == 0 {
		return EmptyDigest(s.now()), nil
	}

	prompt := BuildPrompt(messages, s.now())

	out, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if failure.KindOf(err) == failure.KindUnknown {
			return nil, failure.New(failure.KindTransientIO, "summarize", err)
		}
		return nil, err
	}

	return ParseResponse(out)
}

// BuildPrompt renders the instruction template around the joined message excerpts
func BuildPrompt(messages []models.SanitizedMessage, now time.Time) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, fmt.Sprintf("\nSOURCE: %s\nSUBJECT: %s\nCONTENT:\n%s\n",
			mailparse.DisplayName(m.Sender), m.Subject, excerpt(m.Body, ExcerptLimit)))
	}
	return fmt.Sprintf(instructions, strings.Join(parts, messageSeparator), now.Format("2006-01-02"))
}

// ParseResponse reads a digest from a fenced ```json block or, failing that, the whole text
func ParseResponse(text string) (*models.Digest, error) {
	candidate := strings.TrimSpace(text)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	}

	var digest models.Digest
	if err := json.Unmarshal([]byte(candidate), &digest); err != nil {
		return nil, failure.New(failure.KindParse, "parse digest", err)
	}
	if digest.Headline == "" && len(digest.Sections) == 0 {
		return nil, failure.New(failure.KindParse, "parse digest", errors.New("response has no headline and no sections"))
	}
	if digest.Sections == nil {
		digest.Sections = []models.Section{}
	}
	return &digest, nil
}

// EmptyDigest is the placeholder returned when no newsletter matched the run
func EmptyDigest(now time.Time) *models.Digest {
	return &models.Digest{
		Headline: EmptyHeadline,
		Date:     now.Format("2006-01-02"),
		Sections: []models.Section{},
		Summary:  EmptySummary,
	}
}

func excerpt(body string, limit int) string {
	n := 0
	for i := range body {
		if n == limit {
			return body[:i]
		}
		n++
	}
	return body
}
