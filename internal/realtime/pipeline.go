package realtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"vidresearch/internal/protocol"
)

const defaultScannerBufSize = 1024 * 1024 // 1 MB

// Video is an upload stored on the server's disk.
type Video struct {
	ID   string
	Name string
	Path string
	Size int64
}

// Pipeline does the actual research work behind the protocol.
type Pipeline interface {
	// Analyze summarizes the video as markdown, reporting progress lines
	// along the way.
	Analyze(ctx context.Context, video Video, progress func(string)) (string, error)
	// Reply answers the last user turn of the transcript.
	Reply(ctx context.Context, transcript []protocol.ReportEntry) (string, error)
}

// ScriptedPipeline walks through the analysis steps without doing any work.
// It backs the development server and tests.
type ScriptedPipeline struct {
	// StepDelay is slept between progress lines.
	StepDelay time.Duration
}

var scriptedSteps = []string{
	"Generating keyframes...",
	"Keyframes generated!",
	"Transcribing audio...",
	"Audio transcribed!",
}

func (p ScriptedPipeline) Analyze(ctx context.Context, video Video, progress func(string)) (string, error) {
	for _, step := range scriptedSteps {
		if err := p.pause(ctx); err != nil {
			return "", err
		}
		progress(step)
	}
	return fmt.Sprintf("# Summary\n\nReceived **%s** (%d bytes). No analyzer is configured, so this is a placeholder summary.", video.Name, video.Size), nil
}

func (p ScriptedPipeline) Reply(ctx context.Context, transcript []protocol.ReportEntry) (string, error) {
	if err := p.pause(ctx); err != nil {
		return "", err
	}
	return "You asked: " + lastUserTurn(transcript), nil
}

func (p ScriptedPipeline) pause(ctx context.Context) error {
	if p.StepDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.StepDelay):
		return nil
	}
}

// CommandPipeline runs an external analyzer. The video path is appended to
// AnalyzeArgs; every stderr line is a progress line and stdout is the
// summary. With ChatArgs set, replies come from that command reading the
// transcript as JSON on stdin; otherwise Fallback answers.
type CommandPipeline struct {
	AnalyzeArgs []string
	ChatArgs    []string
	Fallback    Pipeline
}

func (p CommandPipeline) Analyze(ctx context.Context, video Video, progress func(string)) (string, error) {
	if len(p.AnalyzeArgs) == 0 {
		return "", fmt.Errorf("analyzer command not configured")
	}
	args := append(append([]string{}, p.AnalyzeArgs[1:]...), video.Path)
	return run(ctx, p.AnalyzeArgs[0], args, nil, progress)
}

func (p CommandPipeline) Reply(ctx context.Context, transcript []protocol.ReportEntry) (string, error) {
	if len(p.ChatArgs) == 0 {
		if p.Fallback == nil {
			return ScriptedPipeline{}.Reply(ctx, transcript)
		}
		return p.Fallback.Reply(ctx, transcript)
	}
	input, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}
	return run(ctx, p.ChatArgs[0], p.ChatArgs[1:], bytes.NewReader(input), func(string) {})
}

// run executes a command, streaming stderr lines to progress and returning
// trimmed stdout.
func run(ctx context.Context, name string, args []string, stdin io.Reader, progress func(string)) (string, error) {
	binaryPath, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("analyzer not found in PATH: %s", name)
	}

	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Stdin = stdin
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start analyzer: %w", err)
	}

	scanner := bufio.NewScanner(stderrPipe)
	scanner.Buffer(make([]byte, defaultScannerBufSize), defaultScannerBufSize)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			progress(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("analyzer %s: %w", name, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func lastUserTurn(transcript []protocol.ReportEntry) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == protocol.RoleUser {
			return transcript[i].Content
		}
	}
	return ""
}
