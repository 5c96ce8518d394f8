package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a client command into its wire form "<command> <json>".
func Encode(cmd Command) (string, error) {
	switch c := cmd.(type) {
	case StartCommand, ChatCommand:
		data, err := json.Marshal(c)
		if err != nil {
			return "", fmt.Errorf("%w: marshal %s: %v", ErrEncode, c.command(), err)
		}
		return c.command() + " " + string(data), nil
	case nil:
		return "", fmt.Errorf("%w: nil command", ErrEncode)
	default:
		return "", fmt.Errorf("%w: unsupported command %T", ErrEncode, cmd)
	}
}

// EncodeEvent serializes a server event into its JSON wire form.
func EncodeEvent(ev Event) ([]byte, error) {
	var f frame
	switch e := ev.(type) {
	case LogEntry:
		f = frame{Type: TypeLogs, Output: e.Text}
	case ReportEntries:
		entries := e.Entries
		if entries == nil {
			entries = []ReportEntry{}
		}
		f = frame{Type: TypeReport, Output: entries}
	case nil:
		return nil, fmt.Errorf("%w: nil event", ErrEncode)
	default:
		return nil, fmt.Errorf("%w: unsupported event %T", ErrEncode, ev)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %v", ErrEncode, f.Type, err)
	}
	return data, nil
}
