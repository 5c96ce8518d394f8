package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Goldmark renders markdown with GitHub flavored extensions. Raw HTML in the
// source is dropped, so the output is safe to display.
type Goldmark struct {
	md goldmark.Markdown
}

func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (g *Goldmark) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
