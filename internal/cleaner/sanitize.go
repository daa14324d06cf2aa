// Package cleaner turns extracted newsletter bodies into bounded plain text.
package cleaner

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	markupRe     = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
	horizontalWS = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{200b}]+`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// elements whose content never reaches the reader
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Aside: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Table: true, atom.Tr: true,
	atom.Blockquote: true, atom.Pre: true, atom.Hr: true, atom.Main: true,
	atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Figure: true, atom.Figcaption: true,
}

// Sanitize strips markup and noise from a body and normalizes whitespace.
// Block elements become paragraph breaks; text without markup is only normalized.
func Sanitize(body string) string {
	if body == "" {
		return ""
	}

	text := body
	if markupRe.MatchString(body) {
		doc, err := html.Parse(strings.NewReader(body))
		if err == nil {
			var sb strings.Builder
			walk(&sb, doc)
			text = sb.String()
		}
	}

	return normalize(text)
}

func walk(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if droppedElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			sb.WriteString("\n")
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		sb.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(sb, c)
	}
	if block {
		sb.WriteString("\n\n")
	}
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalWS.ReplaceAllString(line, " "))
	}

	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
