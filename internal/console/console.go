// Package console hosts a research session on a plain line-oriented terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"

	"vidresearch/internal/render"
	"vidresearch/internal/ui"
)

type styles struct {
	log     lipgloss.Style
	hint    lipgloss.Style
	agent   lipgloss.Style
	user    lipgloss.Style
	rule    lipgloss.Style
	failure lipgloss.Style
}

func newStyles() styles {
	return styles{
		log:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		hint:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
		agent:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		user:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		rule:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// Console prints session output as it arrives and shows a spinner while
// research runs. It implements the controls, both regions and the page.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner
	styles  styles

	input   *ui.Element
	send    *ui.Element
	primary *ui.Element
}

// New creates a console writing to out.
func New(out io.Writer) *Console {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " " + ui.PlaceholderInProgress
	return &Console{
		out:     out,
		spinner: s,
		styles:  newStyles(),
		input:   &ui.Element{},
		send:    &ui.Element{},
		primary: &ui.Element{},
	}
}

// Controls returns the controls for the UI state machine.
func (c *Console) Controls() ui.Controls {
	return ui.Controls{
		ChatInput: chatInput{c},
		Send:      c.send,
		Primary:   []ui.Control{c.primary},
	}
}

// Observe starts the spinner whenever the machine enters InProgress and stops
// it on any other state.
func (c *Console) Observe(m *ui.Machine) {
	m.OnTransition(func(from, to ui.State) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if to == ui.StateInProgress {
			c.spinner.Start()
			return
		}
		c.spinner.Stop()
		if to == ui.StateError {
			fmt.Fprintln(c.out, c.styles.failure.Render("✗ "+ui.PlaceholderError))
		}
	})
}

// LogRegion returns the progress region.
func (c *Console) LogRegion() render.Region { return logRegion{c} }

// ReportRegion returns the transcript region.
func (c *Console) ReportRegion() render.Region { return reportRegion{c} }

// ScrollToBottom is a no-op: a terminal always shows the newest line.
func (c *Console) ScrollToBottom() {}

// InputEnabled reports whether the chat input accepts text.
func (c *Console) InputEnabled() bool {
	return !c.input.Disabled()
}

// Close stops the spinner.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spinner.Stop()
}

// ReadLoop submits each line read from r until r is exhausted or ctx is
// cancelled. Lines typed while the input is disabled are dropped with a hint.
// Errors wrapping quiet are not printed.
func (c *Console) ReadLoop(ctx context.Context, r io.Reader, submit func(string) error, quiet error) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !c.InputEnabled() {
				c.println(c.styles.hint.Render("(" + c.input.Placeholder() + ")"))
				continue
			}
			if err := submit(line); err != nil && (quiet == nil || !errors.Is(err, quiet)) {
				c.println(c.styles.failure.Render(err.Error()))
			}
		}
	}
}

// println writes one line, pausing the spinner around it.
func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.spinner.Active()
	if active {
		c.spinner.Stop()
	}
	fmt.Fprintln(c.out, line)
	if active {
		c.spinner.Start()
	}
}

type chatInput struct {
	c *Console
}

func (i chatInput) SetDisabled(disabled bool) { i.c.input.SetDisabled(disabled) }

func (i chatInput) SetFilter(filter string) { i.c.input.SetFilter(filter) }

func (i chatInput) SetPlaceholder(text string) {
	i.c.input.SetPlaceholder(text)
	if text == ui.PlaceholderFinished {
		i.c.println(i.c.styles.hint.Render("› " + text))
	}
}

func (i chatInput) Clear() { i.c.input.Clear() }

type logRegion struct {
	c *Console
}

func (r logRegion) Append(b render.Block) {
	r.c.println(r.c.styles.log.Render("  " + b.Text))
}

func (r logRegion) Reset() {}

func (r logRegion) Reveal() {}

type reportRegion struct {
	c *Console
}

func (r reportRegion) Append(b render.Block) {
	label := "?"
	style := lipgloss.NewStyle().Bold(true)
	switch b.Class {
	case render.ClassAgent:
		label, style = "AI", r.c.styles.agent
	case render.ClassUser:
		label, style = "You", r.c.styles.user
	}
	r.c.println(style.Render(label+":") + " " + b.Text)
}

// Reset marks the start of a new transcript; earlier lines stay on screen.
func (r reportRegion) Reset() {
	r.c.println(r.c.styles.rule.Render(strings.Repeat("─", 40)))
}

func (r reportRegion) Reveal() {}
