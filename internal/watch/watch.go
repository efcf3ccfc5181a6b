// Package watch reloads the lead store when its storage files change on disk,
// so a running server picks up writes made by a separate CLI invocation.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long to wait for more changes before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Reloader re-reads persisted state. *store.Store satisfies it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Options configures a Watcher. Zero values select defaults.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher observes one directory and calls Reload after a quiet period
// whenever a file accepted by match changes.
type Watcher struct {
	dir      string
	match    func(name string) bool
	reloader Reloader
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// Debouncing: remember that something changed, reload on the next tick
	pendingMu sync.Mutex
	pending   bool

	reloads atomic.Int64
	started atomic.Bool
	done    chan struct{}
}

// New creates a Watcher for dir. match receives base file names.
func New(dir string, match func(name string) bool, reloader Reloader, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:      dir,
		match:    match,
		reloader: reloader,
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// MatchPrefix accepts file names starting with prefix, such as a sqlite
// database and its -wal and -shm companions.
func MatchPrefix(prefix string) func(string) bool {
	return func(name string) bool {
		return strings.HasPrefix(name, prefix)
	}
}

// MatchAll accepts every file name.
func MatchAll(string) bool { return true }

// Start begins watching. Events are processed until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	w.started.Store(true)
	go w.processEvents(ctx)

	w.logger.Info("storage watcher started", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.started.Load() {
		<-w.done
	}
	return err
}

// Reloads returns how many reloads have run.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent records a relevant change. Chmod-only events are ignored.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	name := filepath.Base(event.Name)
	if w.match != nil && !w.match(name) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("storage change detected", "file", name, "op", event.Op.String())
}

// flushPending reloads once for all changes seen since the last tick.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	if err := w.reloader.Reload(ctx); err != nil {
		w.logger.Warn("reload after storage change failed", "error", err)
		return
	}
	n := w.reloads.Add(1)
	w.logger.Debug("store reloaded", "reloads", n)
}
