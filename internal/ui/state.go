package ui

// State is the session state shown to the user.
type State string

const (
	StateInitial    State = "initial"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
	StateError      State = "error"
)

// Placeholder texts for the chat input, one per state.
const (
	PlaceholderInitial    = "Upload a video to begin..."
	PlaceholderInProgress = "Research in progress..."
	PlaceholderFinished   = "Type something..."
	PlaceholderError      = "Research failed!"
)

// Filters applied to enabled and disabled controls.
const (
	FilterNone   = "none"
	FilterDimmed = "opacity(0.3)"
)

// Control is anything the user can act on that can be disabled and dimmed.
type Control interface {
	SetDisabled(disabled bool)
	SetFilter(filter string)
}

// TextInput is the chat input field.
type TextInput interface {
	Control
	SetPlaceholder(text string)
	Clear()
}

// Controls groups the host's interactive elements.
type Controls struct {
	ChatInput TextInput
	Send      Control
	// Primary holds the upload and start controls, disabled while research runs.
	Primary []Control
}
