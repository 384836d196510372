// Package watch implements a debounced filesystem change collector that
// triggers incremental ingests scoped to changed paths, single-flight
// with a trailing re-run (spec.md §4.C15).
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	MinDebounce     = 50 * time.Millisecond
)

// Runner performs one incremental ingest scoped to paths; nil paths means
// a full ingest.
type Runner func(ctx context.Context, paths []string) error

// Watcher watches Root for filesystem changes and debounces them into
// Runner calls. All mutable state is guarded by mu and is mutated from
// several goroutines: the event loop in Start, debounce-timer callbacks,
// and the run loop. It is not owned by a single scheduler goroutine.
type Watcher struct {
	Root       string
	Debounce   time.Duration
	RunInitial bool
	Run        Runner
	Logger     *slog.Logger

	mu             sync.Mutex
	pending        map[string]bool
	timer          *time.Timer
	running        bool
	rerunRequested bool

	fsw *fsnotify.Watcher
}

// New constructs a Watcher. A debounce below MinDebounce (including zero)
// is replaced by DefaultDebounce.
func New(root string, debounce time.Duration, runInitial bool, run Runner, logger *slog.Logger) *Watcher {
	if debounce < MinDebounce {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Root:       root,
		Debounce:   debounce,
		RunInitial: runInitial,
		Run:        run,
		Logger:     logger,
		pending:    make(map[string]bool),
	}
}

// Start begins watching until ctx is cancelled. It blocks until ctx is
// done or a fatal setup error occurs; per-event errors are logged, not
// fatal, per spec.md §4.C15.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := w.addTree(w.Root); err != nil {
		return err
	}

	if w.RunInitial {
		w.mu.Lock()
		w.running = true
		w.mu.Unlock()
		go w.runAndSettle(ctx, nil)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.Logger.Warn("watch walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.Logger.Warn("watch add failed", "path", path, "error", err)
			}
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.Root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.Logger.Warn("watch add failed", "path", ev.Name, "error", err)
			}
		}
	}

	w.mu.Lock()
	w.pending[rel] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Debounce, func() { w.fire(ctx) })
	w.mu.Unlock()
}

// fire runs when the debounce timer elapses. If an ingest is already in
// flight, it sets rerunRequested and returns — the in-flight run's
// completion will pick up accumulated paths.
func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.rerunRequested = true
		w.mu.Unlock()
		return
	}
	paths := w.drainPendingLocked()
	w.running = true
	w.mu.Unlock()

	w.runAndSettle(ctx, paths)
}

func (w *Watcher) drainPendingLocked() []string {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	return paths
}

// runAndSettle invokes Run once, then — if a rerun was requested while it
// was running — drains any newly accumulated paths and runs again. This
// loop continues until a run finishes with nothing pending, matching
// spec.md's "single-flight with trailing re-run."
func (w *Watcher) runAndSettle(ctx context.Context, paths []string) {
	for {
		if err := w.Run(ctx, paths); err != nil {
			w.Logger.Warn("incremental ingest failed", "error", err)
		}

		w.mu.Lock()
		if !w.rerunRequested {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.rerunRequested = false
		paths = w.drainPendingLocked()
		w.mu.Unlock()
	}
}
