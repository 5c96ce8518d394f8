package render

import (
	"html"

	"github.com/rs/zerolog"

	"vidresearch/internal/protocol"
)

// Sink writes session output into the log and report regions of a host.
type Sink struct {
	log    Region
	report Region
	page   Page
	md     Markdown
	logger zerolog.Logger
}

// NewSink wires the two regions, the page scroller and the markdown renderer.
func NewSink(log, report Region, page Page, md Markdown, logger zerolog.Logger) *Sink {
	return &Sink{
		log:    log,
		report: report,
		page:   page,
		md:     md,
		logger: logger.With().Str("component", "render").Logger(),
	}
}

// AppendLog adds a progress line to the log region. Log lines are shown as
// plain text, never as markdown.
func (s *Sink) AppendLog(text string) {
	s.log.Append(Block{
		Class: ClassAgent,
		Text:  text,
		HTML:  html.EscapeString(text),
	})
	s.log.Reveal()
	s.page.ScrollToBottom()
}

// RenderReport replaces the report region with the given transcript, in order.
func (s *Sink) RenderReport(entries []protocol.ReportEntry) {
	s.report.Reset()
	for _, e := range entries {
		s.report.Append(Block{
			Class: s.classFor(e.Role),
			Text:  e.Content,
			HTML:  s.markdown(e.Content),
		})
	}
	s.page.ScrollToBottom()
}

// EchoUser appends the local user's message to the report region before the
// server has confirmed it.
func (s *Sink) EchoUser(text string) {
	s.report.Append(Block{
		Class: ClassUser,
		Text:  text,
		HTML:  s.markdown(text),
	})
	s.page.ScrollToBottom()
}

func (s *Sink) classFor(role string) string {
	switch role {
	case protocol.RoleAI:
		return ClassAgent
	case protocol.RoleUser:
		return ClassUser
	default:
		s.logger.Warn().Str("role", role).Msg("report entry with unknown role rendered without style")
		return ""
	}
}

func (s *Sink) markdown(src string) string {
	out, err := s.md.Render(src)
	if err != nil {
		s.logger.Warn().Err(err).Msg("markdown conversion failed, showing escaped text")
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return out
}
