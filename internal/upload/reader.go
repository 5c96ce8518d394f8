package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultMaxSize bounds the size of a video read into memory.
const DefaultMaxSize = 512 << 20

var ErrTooLarge = errors.New("upload too large")

// File is an upload ready to be sent in a start command.
type File struct {
	Name    string
	Payload string // standard base64
}

// Reader turns a file into a base64 upload asynchronously. done is called
// exactly once, from a goroutine other than the caller's.
type Reader interface {
	Read(path string, done func(File, error))
}

// FileReader reads uploads from the local filesystem.
type FileReader struct {
	MaxSize int64
}

func (r FileReader) Read(path string, done func(File, error)) {
	go func() {
		done(Load(path, r.MaxSize))
	}()
}

// Load reads path synchronously. maxSize <= 0 means DefaultMaxSize.
func Load(path string, maxSize int64) (File, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("upload is a directory: %s", path)
	}
	if info.Size() > maxSize {
		return File{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read upload: %w", err)
	}

	return File{
		Name:    Filename(path),
		Payload: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Filename returns the last element of a slash or backslash separated path,
// so browser-style "C:\fakepath\clip.mp4" values work too.
func Filename(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
