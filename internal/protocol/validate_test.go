package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Start(t *testing.T) {
	frame, err := Encode(StartCommand{Name: "clip.mp4", Input: "AAEC"})
	require.NoError(t, err)
	assert.Equal(t, `start {"name":"clip.mp4","input":"AAEC"}`, frame)
}

func TestEncode_Chat(t *testing.T) {
	frame, err := Encode(ChatCommand{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `chat {"message":"hello"}`, frame)
}

func TestEncode_Deterministic(t *testing.T) {
	cmd := ChatCommand{Message: "same <input> & \"quotes\""}
	a, err := Encode(cmd)
	require.NoError(t, err)
	b, err := Encode(cmd)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncode_NilCommand(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrEncode)
}

func TestDecode_Logs(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"logs","output":"step 1"}`))
	require.NoError(t, err)
	assert.Equal(t, LogEntry{Text: "step 1"}, ev)
}

func TestDecode_Report(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"report","output":[{"role":"AI","content":"# Done"},{"role":"user","content":"thanks"}]}`))
	require.NoError(t, err)
	assert.Equal(t, ReportEntries{Entries: []ReportEntry{
		{Role: RoleAI, Content: "# Done"},
		{Role: RoleUser, Content: "thanks"},
	}}, ev)
}

func TestDecode_EmptyReport(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"report","output":[]}`))
	require.NoError(t, err)
	report, ok := ev.(ReportEntries)
	require.True(t, ok)
	assert.Empty(t, report.Entries)
}

func TestDecode_UnknownRolePassesThrough(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"report","output":[{"role":"system","content":"note"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "system", ev.(ReportEntries).Entries[0].Role)
}

func TestDecode_Errors(t *testing.T) {
	cases := map[string]string{
		"invalid JSON":        `not json`,
		"missing type":        `{"output":"x"}`,
		"unknown type":        `{"type":"path","output":{"pdf":""}}`,
		"missing output":      `{"type":"logs"}`,
		"null output":         `{"type":"logs","output":null}`,
		"logs not string":     `{"type":"logs","output":42}`,
		"report not list":     `{"type":"report","output":"done"}`,
		"entry missing role":  `{"type":"report","output":[{"content":"x"}]}`,
		"entry empty role":    `{"type":"report","output":[{"role":"","content":"x"}]}`,
		"entry missing body":  `{"type":"report","output":[{"role":"AI"}]}`,
		"second entry broken": `{"type":"report","output":[{"role":"AI","content":"a"},{"role":"user"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, ev)
		})
	}
}

func TestDecodeCommand_Valid(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`start {"name":"a.mp4","input":"AAEC"}`))
	require.NoError(t, err)
	assert.Equal(t, StartCommand{Name: "a.mp4", Input: "AAEC"}, cmd)

	cmd, err = DecodeCommand([]byte(`chat {"message":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, ChatCommand{Message: "hi"}, cmd)
}

func TestDecodeCommand_Errors(t *testing.T) {
	cases := map[string]string{
		"no payload":      `start`,
		"unknown command": `stop {}`,
		"not an object":   `chat "hi"`,
		"bad json":        `chat {"message":`,
		"missing name":    `start {"input":"AAEC"}`,
		"missing input":   `start {"name":"a.mp4"}`,
		"missing message": `chat {}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(raw))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestRoundTrip_Commands(t *testing.T) {
	cmds := []Command{
		StartCommand{Name: "talk.mov", Input: "c29tZSB2aWRlbw=="},
		ChatCommand{Message: "what happens at 0:42?"},
		ChatCommand{Message: "unicode ✓ and\nnewlines"},
	}
	for _, cmd := range cmds {
		frame, err := Encode(cmd)
		require.NoError(t, err)
		got, err := DecodeCommand([]byte(frame))
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}

func TestRoundTrip_Events(t *testing.T) {
	events := []Event{
		LogEntry{Text: "Generating keyframes..."},
		LogEntry{Text: ""},
		ReportEntries{Entries: []ReportEntry{}},
		ReportEntries{Entries: []ReportEntry{
			{Role: RoleAI, Content: "# Summary\n\nA talk."},
			{Role: RoleUser, Content: "more?"},
			{Role: RoleAI, Content: ""},
		}},
	}
	for _, ev := range events {
		data, err := EncodeEvent(ev)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestEncodeEvent_WireShape(t *testing.T) {
	data, err := EncodeEvent(ReportEntries{Entries: []ReportEntry{{Role: RoleAI, Content: "x"}}})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, TypeReport, generic["type"])
	assert.Len(t, generic["output"], 1)

	data, err = EncodeEvent(ReportEntries{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"report","output":[]}`, string(data))
}
