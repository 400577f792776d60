package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchDetectsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fdtrlab.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed := make(chan struct{}, 1)
	w := New(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.WithDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher a moment to register before triggering events
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("version: 2\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("change not observed")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fdtrlab.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed := make(chan struct{}, 1)
	w := New(path, func() { changed <- struct{}{} },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.WithDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}

	select {
	case <-changed:
		t.Fatal("unrelated file triggered change")
	case <-time.After(500 * time.Millisecond):
	}
}
