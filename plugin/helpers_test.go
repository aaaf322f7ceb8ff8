package plugin

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/transport"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// archiveServer serves archives by path and counts requests.
type archiveServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies map[string][]byte
	hits   map[string]int
}

func newArchiveServer(t *testing.T) *archiveServer {
	t.Helper()
	s := &archiveServer{bodies: map[string][]byte{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.bodies[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *archiveServer) serve(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[path] = body
}

func (s *archiveServer) endpoints() manifest.Endpoints {
	return manifest.Endpoints{Raw: s.URL, GitHub: s.URL, Codeload: s.URL}
}

func testRoots(t *testing.T) Roots {
	t.Helper()
	base := t.TempDir()
	return Roots{
		PluginsCache: filepath.Join(base, "cache"),
		Plugins:      filepath.Join(base, "plugins"),
		Builtins:     filepath.Join(base, "builtins"),
		Data:         filepath.Join(base, "data"),
	}
}

func testManifest(slug string, typ manifest.Type, release *manifest.Release) *manifest.Manifest {
	return &manifest.Manifest{
		Slug:       slug,
		Name:       slug,
		Version:    "1.0.0",
		Type:       typ,
		Repository: manifest.Repository{Repo: "owner/" + slug, Branch: "main", Release: release},
	}
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be absent, stat err = %v", path, err)
	}
}

func mkdirWithFile(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// stubInstaller records calls and returns a fixed result.
type stubInstaller struct {
	mu     sync.Mutex
	calls  int
	result Result
	hook   func()
}

func (s *stubInstaller) Install(_ context.Context, _ *manifest.Manifest) Result {
	s.mu.Lock()
	s.calls++
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.result
}

func (s *stubInstaller) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTransport() *transport.Client { return transport.New() }

func releasePath(slug, tag, file string) string {
	if tag == "latest" {
		return fmt.Sprintf("/owner/%s/releases/latest/download/%s", slug, file)
	}
	return fmt.Sprintf("/owner/%s/releases/download/%s/%s", slug, tag, file)
}
