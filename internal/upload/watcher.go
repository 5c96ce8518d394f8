package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultSettleInterval = 500 * time.Millisecond

// DefaultVideoExtensions are the file types a drop directory accepts.
var DefaultVideoExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".avi", ".m4v"}

var ErrWatcherClosed = errors.New("watcher closed")

// Watcher waits for a video to be dropped into a directory. Files already
// present when watching starts are ignored.
type Watcher struct {
	dir       string
	exts      map[string]bool
	settle    time.Duration
	fsWatcher *fsnotify.Watcher
	logger    zerolog.Logger
}

// Watch starts watching dir. A file is reported once no create or write
// events have been seen for it during the settle interval, so large copies
// are not picked up half written.
func Watch(dir string, exts []string, settle time.Duration, logger zerolog.Logger) (*Watcher, error) {
	if len(exts) == 0 {
		exts = DefaultVideoExtensions
	}
	if settle <= 0 {
		settle = defaultSettleInterval
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsW.Add(dir); err != nil {
		fsW.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:       dir,
		exts:      make(map[string]bool, len(exts)),
		settle:    settle,
		fsWatcher: fsW,
		logger:    logger.With().Str("component", "upload-watcher").Str("dir", dir).Logger(),
	}
	for _, ext := range exts {
		w.exts[strings.ToLower(ext)] = true
	}
	return w, nil
}

// Next blocks until a video has settled in the directory or ctx ends.
func (w *Watcher) Next(ctx context.Context) (string, error) {
	var (
		pending string
		timer   *time.Timer
		settled <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return "", ErrWatcherClosed
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.accepts(event.Name) {
				continue
			}

			// Debounce: restart the settle timer on each event.
			pending = event.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.settle)
			settled = timer.C

		case <-settled:
			settled = nil
			info, err := os.Stat(pending)
			if err != nil || info.IsDir() {
				continue
			}
			w.logger.Info().Str("file", pending).Msg("video dropped")
			return pending, nil

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return "", ErrWatcherClosed
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) accepts(path string) bool {
	name := filepath.Base(path)
	if isHidden(name) {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(name))]
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
