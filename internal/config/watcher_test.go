package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ruzivo.json")
	if err := os.WriteFile(path, []byte(`{"digest":{"days":3}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { changed <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{"digest":{"days":14}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Digest.Days != 14 {
			t.Errorf("reloaded days = %d, want 14", cfg.Digest.Days)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s of the write")
	}
}

func TestWatcherKeepsPreviousOnMalformedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ruzivo.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { changed <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	// A sibling file changing must not trigger a reload either.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		t.Fatalf("unexpected reload: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
