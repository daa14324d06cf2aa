package cleaner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultBudget is the per-message character budget
	DefaultBudget = 3000

	// TruncationMarker is appended as its own paragraph when content was dropped
	TruncationMarker = "\n\n[truncated]"

	hardCutSuffix       = "..."
	paragraphSeparator  = "\n\n"
	protectedParagraphs = 2
	shortParagraphWords = 4
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

var boilerplatePhrases = []string{
	"privacy policy",
	"terms of service",
	"terms & conditions",
	"terms and conditions",
	"cookie policy",
	"cookies",
	"unsubscribe",
	"all rights reserved",
	"copyright",
	"do not reply",
	"forward this email",
	"view in browser",
	"manage preferences",
	"update preferences",
	"follow us",
	"contact us",
	"about us",
}

// Truncate fits text into budget characters, keeping paragraphs in order and
// skipping footer-like boilerplate beyond the first two paragraphs. The result is
// at most budget + len(TruncationMarker) characters and Truncate(Truncate(x)) == Truncate(x).
func Truncate(text string, budget int) string {
	if budget < 0 {
		budget = 0
	}

	length := utf8.RuneCountInString(text)
	if length <= budget || alreadyTruncated(text, budget) {
		return text
	}

	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return hardCut(text, budget)
	}

	var kept []string
	used := 0
	for i, p := range paragraphs {
		if isBoilerplate(i, p) {
			continue
		}

		sep := 0
		if len(kept) > 0 {
			sep = utf8.RuneCountInString(paragraphSeparator)
		}
		size := utf8.RuneCountInString(p)

		if used+sep+size > budget {
			remaining := budget - used - sep
			if remaining > 0 {
				if partial := strings.TrimSpace(cutRunes(p, remaining)); partial != "" {
					kept = append(kept, partial)
				}
			}
			break
		}

		kept = append(kept, p)
		used += sep + size
	}

	if len(kept) == 0 {
		return hardCut(text, budget)
	}

	out := strings.Join(kept, paragraphSeparator)
	if utf8.RuneCountInString(out) < length {
		out += TruncationMarker
	}
	return out
}

// alreadyTruncated recognizes output of a previous Truncate call with the same budget.
// A paragraph cut is a trimmed body of at most budget runes plus the marker; a hard cut
// only ever yields the bare suffix, because any non-blank text keeps a partial paragraph.
func alreadyTruncated(text string, budget int) bool {
	if text == hardCutSuffix {
		return true
	}
	body, ok := strings.CutSuffix(text, TruncationMarker)
	if !ok || body == "" || body != strings.TrimSpace(body) {
		return false
	}
	return utf8.RuneCountInString(body) <= budget
}

func isBoilerplate(index int, paragraph string) bool {
	if index < protectedParagraphs {
		return false
	}
	if len(strings.Fields(paragraph)) <= shortParagraphWords {
		return true
	}
	lower := strings.ToLower(paragraph)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func hardCut(text string, budget int) string {
	return strings.TrimSpace(cutRunes(text, budget)) + hardCutSuffix
}

func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
