// Package archive unpacks downloaded plugin archives (zip and tar.gz) into a
// destination directory, rejecting entries that would land outside it.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrCorrupt marks archives that cannot be read or that contain unsafe entries.
var ErrCorrupt = errors.New("archive: corrupt")

// Format identifies an archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
)

// Ext returns the file extension used when caching an archive of this format.
func (f Format) Ext() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatTarGz:
		return ".tar.gz"
	}
	return ".bin"
}

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	}
	return "unknown"
}

// Detect sniffs the container format from magic bytes.
func Detect(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		return FormatZip
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return FormatTarGz
	}
	return FormatUnknown
}

// Entry is one member of an archive.
type Entry struct {
	Name string // slash separated, relative
	Dir  bool
	Mode fs.FileMode
	open func() (io.ReadCloser, error)
}

// Open returns the entry contents.
func (e Entry) Open() (io.ReadCloser, error) { return e.open() }

// Walk calls fn for every directory and regular file entry in data, in
// archive order. Other entry kinds (links, devices) are skipped.
func Walk(data []byte, fn func(Entry) error) error {
	switch Detect(data) {
	case FormatZip:
		return walkZip(data, fn)
	case FormatTarGz:
		return walkTarGz(data, fn)
	}
	return fmt.Errorf("%w: unrecognized format", ErrCorrupt)
}

func walkZip(data []byte, fn func(Entry) error) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for _, zf := range zr.File {
		mode := zf.Mode()
		if !mode.IsDir() && !mode.IsRegular() {
			continue
		}
		e := Entry{Name: zf.Name, Dir: mode.IsDir() || strings.HasSuffix(zf.Name, "/"), Mode: mode.Perm(), open: zf.Open}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func walkTarGz(data []byte, fn func(Entry) error) error {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: open gzip: %v", ErrCorrupt, err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read tar: %v", ErrCorrupt, err)
		}
		var e Entry
		switch hdr.Typeflag {
		case tar.TypeDir:
			e = Entry{Name: hdr.Name, Dir: true, Mode: hdr.FileInfo().Mode().Perm()}
		case tar.TypeReg:
			e = Entry{Name: hdr.Name, Mode: hdr.FileInfo().Mode().Perm(), open: func() (io.ReadCloser, error) {
				return io.NopCloser(tr), nil
			}}
		default:
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, data []byte, dest string) error
}

// Native extracts with the standard library readers.
type Native struct{}

// Extract writes every entry under dest. Directories are created
// recursively; each file gets its full parent chain created from its own
// path before it is written. Unsafe entry names fail with ErrCorrupt;
// filesystem failures are returned wrapped as they occur, leaving whatever
// was already written in place.
func (Native) Extract(ctx context.Context, data []byte, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	return Walk(data, func(e Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := SafeJoin(dest, e.Name)
		if err != nil {
			return err
		}
		if target == filepath.Clean(dest) {
			return nil
		}
		if e.Dir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("mkdir parent %s: %w", filepath.Dir(target), err)
		}
		return writeEntry(e, target)
	})
}

func writeEntry(e Entry, target string) error {
	rc, err := e.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCorrupt, e.Name, err)
	}
	defer rc.Close()

	mode := e.Mode | 0o600
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) //nolint:gosec // G304: path validated by SafeJoin
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(f, rc); err != nil { //nolint:gosec // G110: size bounded by the buffered download
		f.Close()
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return fmt.Errorf("write file %s: %w", target, err)
		}
		return fmt.Errorf("%w: read %s: %v", ErrCorrupt, e.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

// SafeJoin joins base and an archive entry name, failing with ErrCorrupt when
// the result would escape base.
func SafeJoin(base, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: absolute entry path %q", ErrCorrupt, name)
	}
	clean := path.Clean("/" + name)
	dest := filepath.Join(base, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	rel, err := filepath.Rel(base, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal in %q", ErrCorrupt, name)
	}
	if strings.Contains("/"+name+"/", "/../") {
		return "", fmt.Errorf("%w: path traversal in %q", ErrCorrupt, name)
	}
	return dest, nil
}
