package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DeusData/callpath-mapper/internal/discover"
)

func TestSnapshotsEqual(t *testing.T) {
	now := time.Now()

	a := map[string]fileSnapshot{
		"a.component.ts": {modTime: now, size: 100},
		"Api.cs":         {modTime: now, size: 200},
	}
	b := map[string]fileSnapshot{
		"a.component.ts": {modTime: now, size: 100},
		"Api.cs":         {modTime: now, size: 200},
	}
	if !snapshotsEqual(a, b) {
		t.Error("identical snapshots should be equal")
	}

	tests := []struct {
		name string
		snap map[string]fileSnapshot
	}{
		{"different size", map[string]fileSnapshot{
			"a.component.ts": {modTime: now, size: 101},
			"Api.cs":         {modTime: now, size: 200},
		}},
		{"different mtime", map[string]fileSnapshot{
			"a.component.ts": {modTime: now.Add(time.Second), size: 100},
			"Api.cs":         {modTime: now, size: 200},
		}},
		{"missing file", map[string]fileSnapshot{
			"a.component.ts": {modTime: now, size: 100},
		}},
		{"renamed file", map[string]fileSnapshot{
			"a.component.ts": {modTime: now, size: 100},
			"Other.cs":       {modTime: now, size: 200},
		}},
	}
	for _, tt := range tests {
		if snapshotsEqual(a, tt.snap) {
			t.Errorf("%s: should not be equal", tt.name)
		}
	}

	if !snapshotsEqual(map[string]fileSnapshot{}, map[string]fileSnapshot{}) {
		t.Error("both empty should be equal")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestCaptureSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "orders.service.ts"), "export class OrdersService {}\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# notes\n")

	snap, err := captureSnapshot(context.Background(), []discover.Root{{Path: dir}}, &discover.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 source file, got %d", len(snap))
	}
	s, ok := snap[filepath.Join(dir, "orders.service.ts")]
	if !ok {
		t.Fatalf("source file missing from %v", snap)
	}
	if s.size == 0 || s.modTime.IsZero() {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestNewValidatesRoots(t *testing.T) {
	if _, err := New(Config{}, nil); !errors.Is(err, ErrNoRoots) {
		t.Errorf("expected ErrNoRoots, got %v", err)
	}
	missing := []discover.Root{{Path: filepath.Join(t.TempDir(), "missing")}}
	if _, err := New(Config{Roots: missing}, nil); !errors.Is(err, discover.ErrRootInaccessible) {
		t.Errorf("expected ErrRootInaccessible, got %v", err)
	}
}

func TestCheckRunsOnlyOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "orders.service.ts")
	writeFile(t, src, "export class OrdersService {}\n")

	var runs atomic.Int32
	w, err := New(Config{Roots: []discover.Root{{Path: dir}}}, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx := context.Background()
	w.snapshot, err = captureSnapshot(ctx, w.cfg.Roots, w.cfg.Discover)
	if err != nil {
		t.Fatal(err)
	}

	// unchanged tree
	if w.check(ctx) || runs.Load() != 0 {
		t.Fatal("check ran without changes")
	}

	// a file discovery ignores
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	if w.check(ctx) || runs.Load() != 0 {
		t.Fatal("check ran for a non-source file")
	}

	later := time.Now().Add(time.Second)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatal(err)
	}
	if !w.check(ctx) || runs.Load() != 1 {
		t.Fatalf("check did not run after change (runs=%d)", runs.Load())
	}
	// snapshot advanced
	if w.check(ctx) || runs.Load() != 1 {
		t.Error("check ran twice for one change")
	}
}

func TestCheckRetriesAfterFailedRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Orders.cs")
	writeFile(t, src, "public class Orders {}\n")

	var runs atomic.Int32
	w, err := New(Config{Roots: []discover.Root{{Path: dir}}}, func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx := context.Background()
	w.snapshot, _ = captureSnapshot(ctx, w.cfg.Roots, w.cfg.Discover)
	writeFile(t, src, "public class Orders { }\n")

	w.check(ctx)
	w.check(ctx)
	if runs.Load() != 2 {
		t.Errorf("runs = %d, want a retry after the failed run", runs.Load())
	}
}

func TestRunTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "orders.service.ts"), "export class OrdersService {}\n")

	fired := make(chan struct{}, 4)
	w, err := New(Config{Roots: []discover.Root{{Path: dir}}, Debounce: 50 * time.Millisecond}, func(context.Context) error {
		fired <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Writes land after the baseline; repeat until the watcher has seen one.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	n := 0
loop:
	for {
		select {
		case <-fired:
			break loop
		case <-tick.C:
			n++
			writeFile(t, filepath.Join(dir, "orders.service.ts"), "export class OrdersService { v = "+string(rune('0'+n%10))+"; }\n")
		case <-deadline:
			t.Fatal("watcher never ran")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
