package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidresearch/internal/protocol"
	"vidresearch/internal/render"
	"vidresearch/internal/ui"
)

var errRefused = errors.New("refused")

type fixture struct {
	screen  *Screen
	machine *ui.Machine
	sink    *render.Sink
	sent    []string
	model   model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{screen: NewScreen(3)}
	f.machine = ui.New(f.screen.Controls(), zerolog.Nop())
	f.sink = render.NewSink(f.screen.LogRegion(), f.screen.ReportRegion(), f.screen, render.NewGoldmark(), zerolog.Nop())
	f.model = newModel(f.screen, Options{
		Title: "vidresearch",
		Submit: func(text string) error {
			f.sent = append(f.sent, text)
			if text == "" {
				return errRefused
			}
			return nil
		},
		State: f.machine.State,
		Quiet: errRefused,
	})
	f.update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return f
}

func (f *fixture) update(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(model)
	return cmd
}

func (f *fixture) typeText(text string) {
	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestScreen_SignalsChanges(t *testing.T) {
	f := newFixture(t)

	// Drain the signal left by the initial state.
	select {
	case <-f.screen.Changes():
	default:
	}

	f.sink.AppendLog("Generating keyframes...")
	select {
	case <-f.screen.Changes():
	default:
		t.Fatal("expected a change signal")
	}
	assert.True(t, f.screen.LogVisible())
	assert.True(t, f.screen.takeScroll())
	assert.False(t, f.screen.takeScroll())
}

func TestScreen_LogScrollbackIsBounded(t *testing.T) {
	f := newFixture(t)
	for _, line := range []string{"one", "two", "three", "four"} {
		f.sink.AppendLog(line)
	}

	lines := f.screen.LogLines()
	require.Len(t, lines, 3)
	assert.Equal(t, "two", lines[0].Text)
	assert.Equal(t, "four", lines[2].Text)
}

func TestModel_InitialStateBlocksTyping(t *testing.T) {
	f := newFixture(t)
	f.update(changedMsg{})

	assert.Equal(t, ui.PlaceholderInitial, f.model.input.Placeholder)
	assert.False(t, f.model.input.Focused())

	f.typeText("hello")
	assert.Equal(t, "", f.model.input.Value())
	assert.Nil(t, f.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Empty(t, f.sent)
}

func TestModel_SubmitWhenFinished(t *testing.T) {
	f := newFixture(t)
	f.machine.Finish()
	f.update(changedMsg{})
	require.True(t, f.model.input.Focused())
	assert.Equal(t, ui.PlaceholderFinished, f.model.input.Placeholder)

	f.typeText("who speaks first?")
	assert.Equal(t, "who speaks first?", f.screen.Input.Value())

	cmd := f.update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, submitDoneMsg{}, msg)
	assert.Equal(t, []string{"who speaks first?"}, f.sent)

	f.update(msg)
	assert.Empty(t, f.model.status)
}

func TestModel_ClearResetsInput(t *testing.T) {
	f := newFixture(t)
	f.machine.Finish()
	f.update(changedMsg{})
	f.typeText("draft")

	f.machine.ClearInput()
	f.machine.Begin()
	f.update(changedMsg{})

	assert.Equal(t, "", f.model.input.Value())
	assert.False(t, f.model.input.Focused())
	assert.Equal(t, ui.PlaceholderInProgress, f.model.input.Placeholder)
	assert.Contains(t, f.model.View(), "researching")
}

func TestModel_QuietErrorsAreNotShown(t *testing.T) {
	f := newFixture(t)

	f.update(submitDoneMsg{err: errRefused})
	assert.Empty(t, f.model.status)

	f.update(submitDoneMsg{err: errors.New("write: broken pipe")})
	assert.Equal(t, "write: broken pipe", f.model.status)
	assert.Contains(t, f.model.View(), "broken pipe")
}

func TestModel_RendersLogAndReport(t *testing.T) {
	f := newFixture(t)
	f.sink.AppendLog("Transcribing audio...")
	f.sink.RenderReport([]protocol.ReportEntry{
		{Role: protocol.RoleAI, Content: "The video shows a cat."},
		{Role: protocol.RoleUser, Content: "What color?"},
	})
	f.machine.Finish()
	f.update(changedMsg{})

	out := f.model.renderOutput()
	assert.Contains(t, out, "Transcribing audio...")
	assert.Contains(t, out, "The video shows a cat.")
	assert.Contains(t, out, "What color?")
	assert.Contains(t, f.model.View(), "ready")
}

func TestModel_Quit(t *testing.T) {
	f := newFixture(t)
	cmd := f.update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
