package ui

import "sync"

// Element is an in-memory control. Hosts that keep their own widget state
// embed it; tests use it to observe side effects.
type Element struct {
	mu          sync.RWMutex
	disabled    bool
	filter      string
	placeholder string
	value       string
}

var _ TextInput = (*Element)(nil)

func (e *Element) SetDisabled(disabled bool) {
	e.mu.Lock()
	e.disabled = disabled
	e.mu.Unlock()
}

func (e *Element) SetFilter(filter string) {
	e.mu.Lock()
	e.filter = filter
	e.mu.Unlock()
}

func (e *Element) SetPlaceholder(text string) {
	e.mu.Lock()
	e.placeholder = text
	e.mu.Unlock()
}

// SetValue replaces the typed text.
func (e *Element) SetValue(v string) {
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
}

func (e *Element) Clear() { e.SetValue("") }

func (e *Element) Disabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.disabled
}

func (e *Element) Filter() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter
}

func (e *Element) Placeholder() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.placeholder
}

func (e *Element) Value() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}
