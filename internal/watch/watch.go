// Package watch converts recordings as they appear in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/asc2maf/internal/monitoring"
	"github.com/banshee-data/asc2maf/internal/security"
	"github.com/banshee-data/asc2maf/internal/timeutil"
)

// DefaultDebounce is used when a non-positive debounce is configured.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports files with a given extension once they stop changing.
// Only the top level of the directory is watched.
type Watcher struct {
	dir      string
	ext      string
	debounce time.Duration
	clock    timeutil.Clock

	// handled is called after every event the loop consumes.
	handled func()
}

// New returns a Watcher for files ending in ext (case-insensitive) in dir.
func New(dir, ext string, debounce time.Duration, clock timeutil.Clock) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Watcher{dir: filepath.Clean(dir), ext: ext, debounce: debounce, clock: clock}
}

// Run watches until ctx is done. Once no matching file has been created or
// written for the debounce interval, onChange is called with the settled
// paths in sorted order. onChange runs on the watch goroutine, so events
// arriving meanwhile are handled after it returns.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	monitoring.Logf("watch: watching %s for *%s (debounce %s)", w.dir, w.ext, w.debounce)

	return w.loop(ctx, fw.Events, fw.Errors, onChange)
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, onChange func([]string)) error {
	timer := w.clock.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C():
		default:
		}
	}
	pending := false
	pendingPaths := map[string]bool{}

	resetDebounce := func() {
		if pending {
			if !timer.Stop() {
				select {
				case <-timer.C():
				default:
				}
			}
		}
		timer.Reset(w.debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			switch {
			case !w.matches(path):
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pendingPaths, path)
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pendingPaths[path] = true
				resetDebounce()
			}
			if w.handled != nil {
				w.handled()
			}
		case <-timer.C():
			if !pending {
				continue
			}
			pending = false
			if len(pendingPaths) == 0 {
				continue
			}
			changed := make([]string, 0, len(pendingPaths))
			for path := range pendingPaths {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pendingPaths = map[string]bool{}
			onChange(changed)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				monitoring.Logf("watch: %v; rescan %s to pick up missed files", err, w.dir)
				continue
			}
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
	}
}

// matches reports whether path is a direct child of the watched directory
// with the watched extension.
func (w *Watcher) matches(path string) bool {
	if filepath.Dir(path) != w.dir {
		return false
	}
	if !strings.EqualFold(filepath.Ext(path), w.ext) {
		return false
	}
	return security.ValidatePathWithinDirectory(path, w.dir) == nil
}
