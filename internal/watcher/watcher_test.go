package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAddRootMissingIsPending(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	missing := filepath.Join(t.TempDir(), "does-not-exist-yet")
	if err := w.AddRoot(missing); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	if !w.IsPending(missing) {
		t.Error("expected missing root to be pending")
	}
}

func TestCreateAndCoalesce(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.AddRoot(dir); err != nil {
		t.Fatal(err)
	}
	w.Start()

	target := filepath.Join(dir, "VAR_X;value=1")
	if err := os.WriteFile(target, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A rapid rewrite immediately after should coalesce into one event
	// within the ~50ms window named in §4.6.
	if err := os.WriteFile(target, []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events:
		if ev.Path != target {
			t.Errorf("got path %q, want %q", ev.Path, target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
