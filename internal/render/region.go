package render

// Style classes for rendered blocks.
const (
	ClassAgent = "agent_response"
	ClassUser  = "user_response"
)

// Block is one rendered child of a region. Text keeps the source so that
// non-HTML hosts can show it; HTML is what a browser-like host displays.
type Block struct {
	Class string
	Text  string
	HTML  string
}

// Region is an output area of the host.
type Region interface {
	Append(b Block)
	// Reset removes every child.
	Reset()
	// Reveal makes the region visible.
	Reveal()
}

// Page scrolls the whole host view, not a single region.
type Page interface {
	ScrollToBottom()
}

// Markdown converts markdown source into HTML.
type Markdown interface {
	Render(src string) (string, error)
}
