package protocol

import "errors"

// Client → Server command words. A command frame is "<command> <json>".
const (
	CommandStart = "start"
	CommandChat  = "chat"
)

// Server → Client event types, carried in the "type" field.
const (
	TypeLogs   = "logs"
	TypeReport = "report"
)

// Report roles understood by the renderer. Other non-empty roles are
// accepted on the wire and rendered unstyled.
const (
	RoleAI   = "AI"
	RoleUser = "user"
)

var (
	// ErrEncode is returned when a command or event cannot be serialized.
	ErrEncode = errors.New("encode frame")
	// ErrDecode is returned for malformed, unknown, or structurally invalid frames.
	ErrDecode = errors.New("decode frame")
)

// Command is an outgoing client command. The set of implementations is closed.
type Command interface {
	command() string
}

// StartCommand asks the server to analyze an uploaded video.
type StartCommand struct {
	Name  string `json:"name"`
	Input string `json:"input"` // base64 video bytes
}

// ChatCommand sends a follow-up chat message.
type ChatCommand struct {
	Message string `json:"message"`
}

func (StartCommand) command() string { return CommandStart }
func (ChatCommand) command() string  { return CommandChat }

// Event is a decoded server frame. The set of implementations is closed.
type Event interface {
	eventType() string
}

// LogEntry is one progress line.
type LogEntry struct {
	Text string
}

// ReportEntries is the full, ordered transcript of the session so far.
type ReportEntries struct {
	Entries []ReportEntry
}

func (LogEntry) eventType() string      { return TypeLogs }
func (ReportEntries) eventType() string { return TypeReport }

// ReportEntry is one turn of the report transcript.
type ReportEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// frame is the JSON envelope of a server event.
type frame struct {
	Type   string `json:"type"`
	Output any    `json:"output"`
}
