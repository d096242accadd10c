package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"plannerd/pkg/goap"

	"go.uber.org/zap"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()

	reloaded := make(chan []goap.Action, 4)
	w, err := NewWatcher(dir, zap.NewNop(), func(actions []goap.Action) {
		reloaded <- actions
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	body := "actions:\n  - id: hot_loaded\n    agent_role: coder\n"
	if err := os.WriteFile(filepath.Join(dir, "cat.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case actions := <-reloaded:
		if len(actions) != 1 || actions[0].ID != "hot_loaded" {
			t.Fatalf("reload delivered %+v", actions)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s of a catalogue write")
	}

	if stats := w.Stats(); stats.Reloads == 0 || stats.Events == 0 {
		t.Errorf("stats not updated: %+v", stats)
	}
}

func TestWatcherKeepsCatalogueOnBrokenEdit(t *testing.T) {
	dir := t.TempDir()

	reloaded := make(chan []goap.Action, 4)
	w, err := NewWatcher(dir, zap.NewNop(), func(actions []goap.Action) {
		reloaded <- actions
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Duplicate IDs make the directory unloadable; the callback must not
	// fire and the failure must be counted.
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("actions:\n  - id: x\n  - id: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case actions := <-reloaded:
			t.Fatalf("broken catalogue still delivered: %+v", actions)
		case <-deadline:
			if stats := w.Stats(); stats.Failures == 0 {
				t.Error("failure not counted")
			}
			return
		}
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(800 * time.Millisecond)
	if stats := w.Stats(); stats.Events != 0 {
		t.Errorf("non-catalogue file counted as event: %+v", stats)
	}
}

func TestWatcherManualReload(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cat.yaml"), []byte("actions:\n  - id: seed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var got []goap.Action
	w, err := NewWatcher(dir, zap.NewNop(), func(actions []goap.Action) { got = actions })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.watcher.Close()

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "seed" {
		t.Fatalf("manual reload delivered %+v", got)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.Running() {
		t.Error("Running() = false after Start")
	}

	w.Stop()
	w.Stop()
	if w.Running() {
		t.Error("Running() = true after Stop")
	}
}
