// Package tui hosts a research session in a bubbletea terminal UI.
package tui

import (
	"sync"

	"vidresearch/internal/render"
	"vidresearch/internal/ui"
)

// DefaultScrollback is the number of log lines kept on screen.
const DefaultScrollback = 500

// Screen is the state the session writes into and the model draws from.
// Writers never block on the terminal: every mutation marks the screen dirty
// and the model picks the change up on its next update.
type Screen struct {
	Input   *ui.Element
	Send    *ui.Element
	Primary *ui.Element
	Report  *render.Buffer

	log     *render.RingBuffer[render.Block]
	mu      sync.Mutex
	shown   bool
	scroll  bool
	changes chan struct{}
}

// NewScreen creates a screen keeping at most scrollback log lines.
func NewScreen(scrollback int) *Screen {
	if scrollback <= 0 {
		scrollback = DefaultScrollback
	}
	return &Screen{
		Input:   &ui.Element{},
		Send:    &ui.Element{},
		Primary: &ui.Element{},
		Report:  &render.Buffer{},
		log:     render.NewRingBuffer[render.Block](scrollback),
		changes: make(chan struct{}, 1),
	}
}

// Controls returns the controls for the UI state machine.
func (s *Screen) Controls() ui.Controls {
	return ui.Controls{
		ChatInput: textInput{control{s.Input, s}},
		Send:      control{s.Send, s},
		Primary:   []ui.Control{control{s.Primary, s}},
	}
}

// LogRegion returns the append-only progress region.
func (s *Screen) LogRegion() render.Region { return logRegion{s} }

// ReportRegion returns the transcript region.
func (s *Screen) ReportRegion() render.Region { return reportRegion{s} }

// ScrollToBottom asks the model to show the end of the output.
func (s *Screen) ScrollToBottom() {
	s.mu.Lock()
	s.scroll = true
	s.mu.Unlock()
	s.notify()
}

// LogLines returns the retained log blocks, oldest first.
func (s *Screen) LogLines() []render.Block {
	return s.log.ReadAll()
}

// LogVisible reports whether the log region has been revealed.
func (s *Screen) LogVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// Changes is signalled after every mutation. Signals coalesce.
func (s *Screen) Changes() <-chan struct{} {
	return s.changes
}

// takeScroll reports and clears a pending scroll request.
func (s *Screen) takeScroll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.scroll
	s.scroll = false
	return pending
}

func (s *Screen) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

type control struct {
	el     *ui.Element
	screen *Screen
}

func (c control) SetDisabled(disabled bool) {
	c.el.SetDisabled(disabled)
	c.screen.notify()
}

func (c control) SetFilter(filter string) {
	c.el.SetFilter(filter)
	c.screen.notify()
}

type textInput struct {
	control
}

func (t textInput) SetPlaceholder(text string) {
	t.el.SetPlaceholder(text)
	t.screen.notify()
}

func (t textInput) Clear() {
	t.el.Clear()
	t.screen.notify()
}

type logRegion struct {
	screen *Screen
}

func (r logRegion) Append(b render.Block) {
	r.screen.log.Write(b)
	r.screen.notify()
}

func (r logRegion) Reset() {
	r.screen.log.Reset()
	r.screen.notify()
}

func (r logRegion) Reveal() {
	r.screen.mu.Lock()
	r.screen.shown = true
	r.screen.mu.Unlock()
	r.screen.notify()
}

type reportRegion struct {
	screen *Screen
}

func (r reportRegion) Append(b render.Block) {
	r.screen.Report.Append(b)
	r.screen.notify()
}

func (r reportRegion) Reset() {
	r.screen.Report.Reset()
	r.screen.notify()
}

func (r reportRegion) Reveal() {
	r.screen.Report.Reveal()
	r.screen.notify()
}
