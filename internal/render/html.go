package render

import (
	"fmt"
	"html/template"
	"io"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
.agent_response { background: #f4f6fb; padding: 0.5rem 1rem; margin: 0.5rem 0; border-radius: 6px; }
.user_response { background: #e9f7ef; padding: 0.5rem 1rem; margin: 0.5rem 0; border-radius: 6px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Blocks}}<div{{if .Class}} class="{{.Class}}"{{end}}>{{.Body}}</div>
{{end}}</body>
</html>
`))

type htmlBlock struct {
	Class string
	Body  template.HTML
}

// WriteHTML writes the blocks of a report region as a standalone HTML page.
// Block HTML comes from the markdown renderer and is written unescaped.
func WriteHTML(w io.Writer, title string, blocks []Block) error {
	data := struct {
		Title  string
		Blocks []htmlBlock
	}{Title: title}
	for _, b := range blocks {
		data.Blocks = append(data.Blocks, htmlBlock{
			Class: b.Class,
			Body:  template.HTML(b.HTML),
		})
	}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("write report html: %w", err)
	}
	return nil
}
