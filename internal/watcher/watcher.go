// Package watcher re-runs an analysis when source files under the scan roots
// change. fsnotify events are debounced; a re-run happens only when the
// discovered source files differ from the last snapshot.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeusData/callpath-mapper/internal/discover"
)

// DefaultDebounce is how long the tree must stay quiet before a re-run.
const DefaultDebounce = 300 * time.Millisecond

// ErrNoRoots is returned by New without roots to watch.
var ErrNoRoots = errors.New("no roots to watch")

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// RunFunc performs one analysis.
type RunFunc func(ctx context.Context) error

// Config configures a Watcher.
type Config struct {
	Roots    []discover.Root
	Discover *discover.Options
	Debounce time.Duration
}

// Watcher watches the scan roots and calls its RunFunc after changes.
type Watcher struct {
	cfg      Config
	run      RunFunc
	fs       *fsnotify.Watcher
	snapshot map[string]fileSnapshot
}

// New validates the roots and opens an fsnotify watcher. Call Close when done.
func New(cfg Config, run RunFunc) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, ErrNoRoots
	}
	if err := discover.CheckRoots(cfg.Roots); err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Discover == nil {
		cfg.Discover = &discover.Options{}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &Watcher{cfg: cfg, run: run, fs: fw}, nil
}

// Close releases the fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run blocks until ctx is cancelled. The first snapshot is a baseline and
// does not trigger a run; the caller is expected to have run once already.
func (w *Watcher) Run(ctx context.Context) error {
	for _, r := range w.cfg.Roots {
		if err := w.addRecursive(r.Path); err != nil {
			return err
		}
	}
	snap, err := captureSnapshot(ctx, w.cfg.Roots, w.cfg.Discover)
	if err != nil {
		return err
	}
	w.snapshot = snap
	slog.Info("watcher.baseline", "roots", len(w.cfg.Roots), "files", len(snap))

	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ev.Name)
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			slog.Debug("watcher.event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.error", "err", err)
		case <-timer.C:
			w.check(ctx)
		}
	}
}

// check compares a fresh snapshot with the last one and runs on change. It
// reports whether a run happened.
func (w *Watcher) check(ctx context.Context) bool {
	snap, err := captureSnapshot(ctx, w.cfg.Roots, w.cfg.Discover)
	if err != nil {
		slog.Warn("watcher.snapshot", "err", err)
		return false
	}
	if snapshotsEqual(w.snapshot, snap) {
		return false
	}

	slog.Info("watcher.changed", "files", len(snap))
	if err := w.run(ctx); err != nil {
		// Keep old snapshot so the next event retries
		slog.Warn("watcher.run", "err", err)
		return true
	}
	w.snapshot = snap
	return true
}

// addRecursive watches dir and every subdirectory discovery would enter.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	if discover.IGNORE_PATTERNS[name] {
		return true
	}
	for _, pattern := range w.cfg.Discover.ExcludeDirs {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// captureSnapshot runs discovery and records mtime+size for each file.
func captureSnapshot(ctx context.Context, roots []discover.Root, opts *discover.Options) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(ctx, roots, opts)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.Path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}
