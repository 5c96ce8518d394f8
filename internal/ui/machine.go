package ui

import "github.com/rs/zerolog"

// TransitionFunc observes a state change after its side effects are applied.
type TransitionFunc func(from, to State)

// Machine tracks the session state and applies each state's side effects to
// the host controls. It is not safe for concurrent use; the session
// controller serializes every call.
type Machine struct {
	controls  Controls
	state     State
	observers []TransitionFunc
	logger    zerolog.Logger
}

// New creates a machine in the Initial state and applies its side effects.
func New(controls Controls, logger zerolog.Logger) *Machine {
	m := &Machine{
		controls: controls,
		state:    StateInitial,
		logger:   logger.With().Str("component", "ui").Logger(),
	}
	m.apply(StateInitial)
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// OnTransition registers an observer called after every state change.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.observers = append(m.observers, fn)
}

// Begin moves to InProgress. Called whenever a Start or Chat command is sent.
func (m *Machine) Begin() bool { return m.transition(StateInProgress) }

// Finish moves to Finished. Called when a report arrives, whatever the
// current state.
func (m *Machine) Finish() bool { return m.transition(StateFinished) }

// Fail moves to Error after an unrecoverable failure.
func (m *Machine) Fail() bool { return m.transition(StateError) }

// transition reports whether the state changed. Moving to the current state
// is a no-op.
func (m *Machine) transition(to State) bool {
	from := m.state
	if from == to {
		return false
	}
	m.state = to
	m.apply(to)
	m.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state transition")
	for _, fn := range m.observers {
		fn(from, to)
	}
	return true
}

func (m *Machine) apply(s State) {
	switch s {
	case StateInProgress:
		for _, c := range m.controls.Primary {
			if c != nil {
				c.SetDisabled(true)
			}
		}
		m.SetInputEnabled(false)
		m.setPlaceholder(PlaceholderInProgress)
	case StateFinished:
		m.setPlaceholder(PlaceholderFinished)
		m.SetInputEnabled(true)
	case StateError:
		m.setPlaceholder(PlaceholderError)
		m.SetInputEnabled(false)
	case StateInitial:
		m.setPlaceholder(PlaceholderInitial)
		m.SetInputEnabled(false)
	default:
		m.SetInputEnabled(false)
	}
}

// SetInputEnabled enables or disables the chat input and the send action
// together. Calling it repeatedly with the same value is harmless.
func (m *Machine) SetInputEnabled(enabled bool) {
	filter := FilterDimmed
	if enabled {
		filter = FilterNone
	}
	if in := m.controls.ChatInput; in != nil {
		in.SetDisabled(!enabled)
		in.SetFilter(filter)
	}
	if send := m.controls.Send; send != nil {
		send.SetDisabled(!enabled)
		send.SetFilter(filter)
	}
}

// ClearInput empties the chat input after a message was sent.
func (m *Machine) ClearInput() {
	if m.controls.ChatInput != nil {
		m.controls.ChatInput.Clear()
	}
}

func (m *Machine) setPlaceholder(text string) {
	if m.controls.ChatInput != nil {
		m.controls.ChatInput.SetPlaceholder(text)
	}
}
