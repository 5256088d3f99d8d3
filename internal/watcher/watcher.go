// Package watcher reports files added or changed under the definition stores.
//
// Deletions and renames are not reported.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Kind is the kind of a file event.
type Kind string

const (
	// Added is reported for newly created files.
	Added Kind = "added"

	// Changed is reported for writes to existing files.
	Changed Kind = "changed"
)

// Event is a debounced file event. Events are delivered once and not stored.
type Event struct {
	Kind Kind
	Path string
}

// Config holds configuration options for the Watcher.
type Config struct {
	Roots         []string       // Directories to watch; missing ones are skipped
	DebounceDelay time.Duration  // Default: 100ms
	OnEvent       func(ev Event) // Required
	Logger        *log.Logger    // Default: log.Default()
}

// Watcher monitors directory trees for file changes.
type Watcher struct {
	roots         []string
	debounceDelay time.Duration
	onEvent       func(Event)
	logger        *log.Logger

	fsWatcher *fsnotify.Watcher
	pending   map[string]pendingEvent
	mu        sync.Mutex
	ready     chan struct{}
}

type pendingEvent struct {
	kind Kind
	at   time.Time
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.OnEvent == nil {
		return nil, fmt.Errorf("event callback is required")
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Watcher{
		roots:         cfg.Roots,
		debounceDelay: debounce,
		onEvent:       cfg.OnEvent,
		logger:        logger.WithPrefix("watcher"),
		pending:       make(map[string]pendingEvent),
		ready:         make(chan struct{}),
	}, nil
}

// ExistingRoots filters roots down to directories that exist now.
func ExistingRoots(roots ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, root := range roots {
		clean := filepath.Clean(root)
		if seen[clean] {
			continue
		}
		if info, err := os.Stat(clean); err == nil && info.IsDir() {
			seen[clean] = true
			out = append(out, clean)
		}
	}
	return out
}

// Start begins watching. It blocks until the context is cancelled.
// Returns nil immediately when none of the roots exist. Call Start at most once.
func (w *Watcher) Start(ctx context.Context) error {
	roots := ExistingRoots(w.roots...)
	if len(roots) == 0 {
		w.logger.Info("nothing to watch")
		close(w.ready)
		return nil
	}

	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		close(w.ready)
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	for _, root := range roots {
		w.addWatchRecursive(root, false)
		w.logger.Info("watching", "root", root)
	}
	close(w.ready)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processDebounced(done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// Ready is closed once Start has registered its watches.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if hidden(filepath.Base(path)) {
		return
	}

	var kind Kind
	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addWatchRecursive(path, true)
			return
		}
		kind = Added
	case event.Op&fsnotify.Write != 0:
		kind = Changed
	default:
		return
	}

	w.logger.Debug("event", "op", event.Op.String(), "path", path)
	w.schedule(path, kind)
}

// schedule records an event, restarting the path's debounce window. An
// addition is not downgraded by a later write.
func (w *Watcher) schedule(path string, kind Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.pending[path]; ok && prev.kind == Added {
		kind = Added
	}
	w.pending[path] = pendingEvent{kind: kind, at: time.Now()}
}

// processDebounced emits pending events once they are older than the debounce delay.
func (w *Watcher) processDebounced(done <-chan struct{}) {
	tick := w.debounceDelay / 2
	if tick > 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, ev := range w.due(time.Now()) {
				w.onEvent(ev)
			}
		}
	}
}

// due removes and returns events past the debounce delay, ordered by path.
func (w *Watcher) due(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Event
	for path, p := range w.pending {
		if now.Sub(p.at) >= w.debounceDelay {
			out = append(out, Event{Kind: p.kind, Path: path})
			delete(w.pending, path)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// addWatchRecursive adds a directory and all non-hidden subdirectories.
// With report set, files already present are scheduled as additions; they were
// created before the directory was watched.
func (w *Watcher) addWatchRecursive(root string, report bool) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if report && !hidden(d.Name()) {
				w.schedule(path, Added)
			}
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Debug("failed to watch", "path", path, "err", err)
		}
		return nil
	})
}

// hidden reports dot-names, which are never watched or reported.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

