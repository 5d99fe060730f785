// Package watch monitors the modules root after startup. The routing tree
// is immutable once serving begins, so changes are only reported: the
// watcher logs that a restart is required and notifies an optional hook.
package watch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes the modules root and its module directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func()
	stopCh   chan struct{}
}

// New creates a watcher over root. onChange, when non-nil, is invoked once
// per observed filesystem event (e.g. to bump a metrics counter).
func New(root string, logger zerolog.Logger, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch modules root: %w", err)
	}

	// Watch each module directory too; entry-point edits matter as much
	// as added or removed directories.
	entries, err := os.ReadDir(root)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				fsw.Add(filepath.Join(root, e.Name()))
			}
		}
	}

	return &Watcher{
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
	w.logger.Info().Msg("watching modules root for changes")
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Info().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("module tree changed; restart the gateway to reload modules")

			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("module watcher error")

		case <-w.stopCh:
			return
		}
	}
}
