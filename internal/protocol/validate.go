package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawEvent mirrors the incoming envelope with the output left undecoded so
// each type can validate its own shape.
type rawEvent struct {
	Type   string          `json:"type"`
	Output json.RawMessage `json:"output"`
}

// rawEntry uses pointers so absent fields can be told apart from empty ones.
type rawEntry struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

// Decode parses and validates a raw server frame.
func Decode(raw []byte) (Event, error) {
	var msg rawEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrDecode, err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing 'type' field", ErrDecode)
	}

	if len(msg.Output) == 0 || bytes.Equal(msg.Output, []byte("null")) {
		return nil, fmt.Errorf("%w: missing 'output' field in %s frame", ErrDecode, msg.Type)
	}

	switch msg.Type {
	case TypeLogs:
		var text string
		if err := json.Unmarshal(msg.Output, &text); err != nil {
			return nil, fmt.Errorf("%w: %s output must be a string: %v", ErrDecode, msg.Type, err)
		}
		return LogEntry{Text: text}, nil

	case TypeReport:
		var raws []rawEntry
		if err := json.Unmarshal(msg.Output, &raws); err != nil {
			return nil, fmt.Errorf("%w: %s output must be a list of entries: %v", ErrDecode, msg.Type, err)
		}
		entries := make([]ReportEntry, 0, len(raws))
		for i, r := range raws {
			if r.Role == nil || *r.Role == "" {
				return nil, fmt.Errorf("%w: missing required field 'role' in %s entry %d", ErrDecode, msg.Type, i)
			}
			if r.Content == nil {
				return nil, fmt.Errorf("%w: missing required field 'content' in %s entry %d", ErrDecode, msg.Type, i)
			}
			entries = append(entries, ReportEntry{Role: *r.Role, Content: *r.Content})
		}
		return ReportEntries{Entries: entries}, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type: %s", ErrDecode, msg.Type)
	}
}

// DecodeCommand parses and validates a raw client frame. It is the server's
// half of the wire protocol.
func DecodeCommand(raw []byte) (Command, error) {
	word, body, ok := bytes.Cut(raw, []byte(" "))
	if !ok {
		return nil, fmt.Errorf("%w: missing command payload", ErrDecode)
	}

	switch string(word) {
	case CommandStart:
		var p StartCommand
		if err := unmarshalObject(body, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid payload for %s: %v", ErrDecode, CommandStart, err)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("%w: missing required field 'name' in %s payload", ErrDecode, CommandStart)
		}
		if p.Input == "" {
			return nil, fmt.Errorf("%w: missing required field 'input' in %s payload", ErrDecode, CommandStart)
		}
		return p, nil

	case CommandChat:
		var p ChatCommand
		if err := unmarshalObject(body, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid payload for %s: %v", ErrDecode, CommandChat, err)
		}
		if p.Message == "" {
			return nil, fmt.Errorf("%w: missing required field 'message' in %s payload", ErrDecode, CommandChat)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: unknown command: %s", ErrDecode, word)
	}
}

func unmarshalObject(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return fmt.Errorf("payload is not a JSON object")
	}
	return json.Unmarshal(body, v)
}
