package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type file struct {
	name string
	body string
}

func buildZip(t *testing.T, files ...file) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func buildTarGz(t *testing.T, files ...file) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write([]byte(f.body)); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestDetect(t *testing.T) {
	if got := Detect(buildZip(t, file{"a", "b"})); got != FormatZip {
		t.Errorf("zip detected as %v", got)
	}
	if got := Detect(buildTarGz(t, file{"a", "b"})); got != FormatTarGz {
		t.Errorf("tar.gz detected as %v", got)
	}
	if got := Detect([]byte("<html>")); got != FormatUnknown {
		t.Errorf("html detected as %v", got)
	}
	if FormatZip.Ext() != ".zip" || FormatTarGz.Ext() != ".tar.gz" {
		t.Error("unexpected extensions")
	}
}

func TestExtractZipCreatesParentChain(t *testing.T) {
	dest := t.TempDir()
	// no directory entries: parents must come from each file's own path
	data := buildZip(t,
		file{"repo-main/manifest.json", `{"slug":"x"}`},
		file{"repo-main/src/deep/nested/main.js", "export {}"},
	)
	if err := (Native{}).Extract(context.Background(), data, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "repo-main", "src", "deep", "nested", "main.js")); got != "export {}" {
		t.Errorf("unexpected content %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "repo-main", "manifest.json")); got != `{"slug":"x"}` {
		t.Errorf("unexpected manifest %q", got)
	}
}

func TestExtractTarGz(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "not", "yet", "there")
	data := buildTarGz(t, file{"main.js", "1"}, file{"lib/util.js", "2"})
	if err := (Native{}).Extract(context.Background(), data, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if readFile(t, filepath.Join(dest, "lib", "util.js")) != "2" {
		t.Error("tar entry not extracted")
	}
}

func TestExtractOverwrites(t *testing.T) {
	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "main.js"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (Native{}).Extract(context.Background(), buildZip(t, file{"main.js", "new"}), dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if readFile(t, filepath.Join(dest, "main.js")) != "new" {
		t.Error("existing file not overwritten")
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.js", "a/../../evil.js", "/abs.js"} {
		t.Run(name, func(t *testing.T) {
			dest := t.TempDir()
			err := (Native{}).Extract(context.Background(), buildZip(t, file{name, "x"}), dest)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestExtractGarbage(t *testing.T) {
	err := (Native{}).Extract(context.Background(), []byte("PK\x03\x04garbage"), t.TempDir())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	err = (Native{}).Extract(context.Background(), []byte("plain text"), t.TempDir())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for unknown format, got %v", err)
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (Native{}).Extract(ctx, buildZip(t, file{"a.js", "x"}), t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()
	got, err := SafeJoin(base, "a/b/c.txt")
	if err != nil {
		t.Fatalf("SafeJoin: %v", err)
	}
	if got != filepath.Join(base, "a", "b", "c.txt") {
		t.Errorf("got %q", got)
	}
}
