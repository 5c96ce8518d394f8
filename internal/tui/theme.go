package tui

import (
	"github.com/charmbracelet/lipgloss"

	"vidresearch/internal/render"
)

type theme struct {
	header      lipgloss.Style
	panel       lipgloss.Style
	input       lipgloss.Style
	inputDimmed lipgloss.Style
	logLine     lipgloss.Style
	agentLabel  lipgloss.Style
	userLabel   lipgloss.Style
	otherLabel  lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	help        lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		inputDimmed: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Faint(true).
			Padding(0, 1),
		logLine:     lipgloss.NewStyle().Foreground(muted),
		agentLabel:  lipgloss.NewStyle().Foreground(blue).Bold(true),
		userLabel:   lipgloss.NewStyle().Foreground(mint).Bold(true),
		otherLabel:  lipgloss.NewStyle().Bold(true),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:        lipgloss.NewStyle().Foreground(muted),
	}
}

// label returns the speaker heading for a report block.
func (t theme) label(class string) string {
	switch class {
	case render.ClassAgent:
		return t.agentLabel.Render("AI")
	case render.ClassUser:
		return t.userLabel.Render("You")
	default:
		return t.otherLabel.Render("?")
	}
}
