package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vidresearch/internal/ui"
)

// Options wires the model to the session.
type Options struct {
	Title string
	// Submit sends a chat message. It runs outside the update loop.
	Submit func(text string) error
	// State reports the session state for the header.
	State func() ui.State
	// Quiet lists submit errors that are not worth a status line.
	Quiet error
}

type changedMsg struct{}

type submitDoneMsg struct {
	err error
}

type model struct {
	screen *Screen
	opts   Options

	input   textinput.Model
	output  viewport.Model
	spinner spinner.Model
	theme   theme

	status string
	width  int
	height int
}

func newModel(screen *Screen, opts Options) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = screen.Input.Placeholder()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return model{
		screen:  screen,
		opts:    opts,
		input:   input,
		output:  viewport.New(0, 0),
		spinner: sp,
		theme:   newTheme(),
	}
}

// Run shows the screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, screen *Screen, opts Options) error {
	p := tea.NewProgram(newModel(screen, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		func() tea.Msg { return changedMsg{} },
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case changedMsg:
		cmds = append(cmds, m.sync(), waitForChange(m.screen.Changes()))
	case submitDoneMsg:
		m.status = ""
		if msg.err != nil && (m.opts.Quiet == nil || !errors.Is(msg.err, m.opts.Quiet)) {
			m.status = msg.err.Error()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.output.SetContent(m.renderOutput())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		if m.screen.Input.Disabled() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.screen.Input.SetValue(m.input.Value())
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) submit() tea.Cmd {
	if m.screen.Input.Disabled() || m.opts.Submit == nil {
		return nil
	}
	text := m.input.Value()
	submit := m.opts.Submit
	return func() tea.Msg {
		return submitDoneMsg{err: submit(text)}
	}
}

// sync copies the screen state into the widgets.
func (m *model) sync() tea.Cmd {
	var cmd tea.Cmd
	in := m.screen.Input
	m.input.Placeholder = in.Placeholder()
	if in.Disabled() {
		m.input.Blur()
	} else if !m.input.Focused() {
		cmd = m.input.Focus()
	}
	if in.Value() == "" && m.input.Value() != "" {
		m.input.Reset()
	}

	m.output.SetContent(m.renderOutput())
	if m.screen.takeScroll() {
		m.output.GotoBottom()
	}
	return cmd
}

func (m *model) resize() {
	m.output.Width = max(20, m.width-4)
	m.output.Height = max(5, m.height-9)
	m.input.Width = max(20, m.width-10)
}

func (m model) renderOutput() string {
	var b strings.Builder
	if m.screen.LogVisible() {
		for _, line := range m.screen.LogLines() {
			b.WriteString(m.theme.logLine.Render("› " + line.Text))
			b.WriteByte('\n')
		}
	}

	body := lipgloss.NewStyle()
	if m.output.Width > 0 {
		body = body.Width(m.output.Width)
	}
	for _, blk := range m.screen.Report.Blocks() {
		b.WriteByte('\n')
		b.WriteString(m.theme.label(blk.Class))
		b.WriteByte('\n')
		b.WriteString(body.Render(blk.Text))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderState() string {
	if m.opts.State == nil {
		return ""
	}
	switch m.opts.State() {
	case ui.StateInProgress:
		return m.spinner.View() + " " + m.theme.status.Render("researching")
	case ui.StateFinished:
		return m.theme.status.Render("ready")
	case ui.StateError:
		return m.theme.errorStatus.Render("failed")
	default:
		return m.theme.help.Render("waiting for a video")
	}
}

func (m model) View() string {
	header := m.theme.header.Render(m.opts.Title) + " " + m.renderState()
	body := m.theme.panel.Render(m.output.View())

	inputStyle := m.theme.input
	if m.screen.Input.Filter() == ui.FilterDimmed {
		inputStyle = m.theme.inputDimmed
	}
	input := inputStyle.Render(m.input.View())

	footer := m.theme.help.Render("Enter send · PgUp/PgDn scroll · Ctrl+C quit")
	if m.status != "" {
		footer = m.theme.errorStatus.Render(m.status) + "\n" + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, footer)
}
