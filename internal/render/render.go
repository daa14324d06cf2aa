// Package render turns a digest into the self-contained HTML document that gets delivered.
package render

import (
	"bytes"
	"html/template"

	"newsletter-digest/internal/models"
)

const defaultTitle = "ML Daily Digest"

// Options carries the values the template needs beyond the digest itself
type Options struct {
	Title          string
	UnsubscribeURL string
}

type view struct {
	Title          string
	Headline       string
	Date           string
	Summary        string
	Sections       []sectionView
	UnsubscribeURL string
}

type sectionView struct {
	Title string
	Items []itemView
}

type itemView struct {
	Title  string
	URL    string
	Text   string
	Source string
	Image  string
}

var tmpl = template.Must(template.New("digest").Parse(documentTemplate))

// Render produces the HTML document for d. It performs no I/O and tolerates missing
// optional fields: a missing URL links to "#", a missing snippet falls back to the summary.
func Render(d *models.Digest, opts Options) (string, error) {
	v := view{
		Title:          opts.Title,
		Headline:       d.Headline,
		Date:           d.Date,
		Summary:        d.Summary,
		UnsubscribeURL: opts.UnsubscribeURL,
	}
	if v.Title == "" {
		v.Title = defaultTitle
	}
	if v.UnsubscribeURL == "" {
		v.UnsubscribeURL = "#"
	}

	for _, s := range d.Sections {
		sv := sectionView{Title: s.Title}
		for _, it := range s.Items {
			iv := itemView{
				Title:  it.Title,
				URL:    it.URL,
				Text:   it.Snippet,
				Source: it.Source,
				Image:  it.ImageURL,
			}
			if iv.URL == "" {
				iv.URL = "#"
			}
			if iv.Text == "" {
				iv.Text = it.Summary
			}
			sv.Items = append(sv.Items, iv)
		}
		v.Sections = append(v.Sections, sv)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 640px; margin: 0 auto; padding: 20px; }
  .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: #fff; padding: 30px; border-radius: 10px; margin-bottom: 30px; }
  .header h1 { margin: 0; font-size: 24px; }
  .date { opacity: 0.9; margin-top: 5px; }
  .summary { background: #f7f7f9; padding: 15px; border-radius: 8px; margin-bottom: 25px; }
  .section { margin-bottom: 30px; }
  .section h2 { color: #667eea; border-bottom: 2px solid #667eea; padding-bottom: 10px; }
  .item { margin-bottom: 20px; padding: 15px; background: #f9f9f9; border-radius: 8px; border-left: 4px solid #667eea; }
  .item h3 { margin: 0 0 10px 0; font-size: 16px; }
  .item a { color: #667eea; text-decoration: none; }
  .item img { max-width: 100%; border-radius: 6px; }
  .source { font-size: 12px; color: #888; margin-top: 5px; }
  .footer { text-align: center; color: #888; font-size: 12px; margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; }
</style>
</head>
<body>
<div class="header">
  <h1>{{.Headline}}</h1>
  <div class="date">{{.Date}}</div>
</div>
{{- if .Summary}}
<div class="summary"><p>{{.Summary}}</p></div>
{{- end}}
{{- range .Sections}}
<div class="section">
  <h2>{{.Title}}</h2>
  {{- range .Items}}
  <div class="item">
    <h3><a href="{{.URL}}">{{.Title}}</a></h3>
    {{- if .Image}}
    <img src="{{.Image}}" alt="">
    {{- end}}
    <p>{{.Text}}</p>
    <div class="source">Source: {{.Source}}</div>
  </div>
  {{- end}}
</div>
{{- end}}
<div class="footer">
  <p>{{.Title}} | <a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>
</div>
</body>
</html>
`
