// Package watcher triggers index updates when files under the codebase root
// change, debouncing bursts of filesystem events into one update.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/semindex/semindex/internal/config"
	"github.com/semindex/semindex/internal/scanner"
)

// DefaultDebounce is how long the watcher waits for an event burst to
// settle before firing.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes a directory tree and invokes a callback after changes.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context)
}

// New creates a Watcher over root. onChange runs after each settled burst of
// filesystem events.
func New(root string, debounce time.Duration, onChange func(ctx context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
	}
}

// Run watches until the context is cancelled. Directories created while
// watching are added on the fly; excluded directories are never watched.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if w.ignored(event.Name) {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, event.Name); err != nil {
						log.Printf("watch %s: %v", event.Name, err)
					}
				}
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)

		case <-timer.C:
			w.onChange(ctx)
		}
	}
}

// addTree registers dir and all non-excluded subdirectories.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scanner.IsExcludedDir(d.Name(), config.MarkerDir) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			log.Printf("watch %s: %v", path, err)
		}
		return nil
	})
}

// ignored reports whether an event path falls inside an excluded directory.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if scanner.IsExcludedDir(part, config.MarkerDir) {
			return true
		}
	}
	return false
}
