package config

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(cond func() bool, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, store *FileStore, fn func(Config)) *Watcher {
	t.Helper()
	w := NewWatcher(store, fn, WithWatchDebounce(50*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewFileStore(path, "", nil)
	if err := store.Save(Default()); err != nil {
		t.Fatal(err)
	}

	var called atomic.Int32
	var mu sync.Mutex
	var last Config
	startWatcher(t, store, func(c Config) {
		mu.Lock()
		last = c
		mu.Unlock()
		called.Add(1)
	})

	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.SortOrder = [2]string{StrategySequence, DirectionReverse}
	// A second store so the write looks like another process.
	if err := NewFileStore(path, "", nil).Save(cfg); err != nil {
		t.Fatal(err)
	}

	if !waitFor(func() bool { return called.Load() > 0 }, 2*time.Second) {
		t.Fatal("onChange was not called after file modification")
	}
	mu.Lock()
	defer mu.Unlock()
	if last.SortOrder != cfg.SortOrder {
		t.Errorf("reloaded sort_order = %v", last.SortOrder)
	}
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewFileStore(path, "", nil)
	if err := store.Save(Default()); err != nil {
		t.Fatal(err)
	}

	var called atomic.Int32
	startWatcher(t, store, func(Config) { called.Add(1) })

	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	for _, url := range []string{"https://a", "https://b", "https://c"} {
		cfg.MirrorList = []string{url}
		if err := store.Save(cfg); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !waitFor(func() bool { return called.Load() > 0 }, 2*time.Second) {
		t.Fatal("onChange was not called")
	}
	time.Sleep(200 * time.Millisecond)
	if n := called.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1", n)
	}
}

func TestWatcher_SkipUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewFileStore(path, "", nil)
	if err := store.Save(Default()); err != nil {
		t.Fatal(err)
	}

	var called atomic.Int32
	startWatcher(t, store, func(Config) { called.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if err := store.Save(Default()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if n := called.Load(); n != 0 {
		t.Errorf("onChange called %d times for identical content", n)
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "config.json"), "", nil)

	var called atomic.Int32
	startWatcher(t, store, func(Config) { called.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"plugins_marketplace":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if n := called.Load(); n != 0 {
		t.Errorf("onChange called %d times for a sibling file", n)
	}
}

func TestWatcher_StopCleanup(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.json"), "", nil)
	w := NewWatcher(store, func(Config) {}, WithWatchDebounce(50*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}
