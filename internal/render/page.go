package render

import (
	"bytes"
	"fmt"
	"html/template"

	"kbexport/internal/snow"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Number}} {{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 11pt; margin: 0; }
header { border-bottom: 1px solid #999; margin-bottom: 1em; padding-bottom: .5em; }
header h1 { font-size: 16pt; margin: 0 0 .25em 0; }
header .meta { color: #555; font-size: 9pt; }
img { max-width: 100%; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 2px 4px; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<div class="meta">{{.Number}}{{with .Version}} &middot; version {{.}}{{end}}{{with .UpdatedOn}} &middot; updated {{.}}{{end}}</div>
</header>
<article>{{.Body}}</article>
</body>
</html>
`))

// Page wraps a cleaned article body in the print template.
func Page(art *snow.Article, body string) (string, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		*snow.Article
		Body template.HTML
	}{art, template.HTML(body)})
	if err != nil {
		return "", fmt.Errorf("render page %s: %w", art.Number, err)
	}
	return buf.String(), nil
}
