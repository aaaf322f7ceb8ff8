package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/GoCodeAlone/marketplace/manifest"
)

// PathPlugin is the owned-path key of the plugin's own directory. It is the
// only path removed in update mode.
const PathPlugin = "plugin"

// PathData is the owned-path key of the plugin's data directory.
const PathData = "data"

// Record is what the host knows about one installed plugin.
type Record struct {
	Manifest *manifest.Manifest `json:"manifest"`
	Paths    map[string]string  `json:"paths"`
}

// InstalledRegistry is the read-only view of installed plugins.
type InstalledRegistry interface {
	Lookup(slug string) (Record, bool)
}

// Snapshotter is implemented by registries whose lookups are costly. The
// returned registry answers from a single point-in-time scan.
type Snapshotter interface {
	Snapshot() InstalledRegistry
}

// MapRegistry is an in-memory InstalledRegistry.
type MapRegistry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMapRegistry creates an empty registry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{records: make(map[string]Record)}
}

// Put adds or replaces a record.
func (r *MapRegistry) Put(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Manifest.Slug] = rec
}

// Lookup implements InstalledRegistry.
func (r *MapRegistry) Lookup(slug string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[slug]
	return rec, ok
}

// DirectoryRegistry discovers installed plugins by scanning the plugin roots
// for directories holding a manifest.json. Every lookup rescans, so installs
// and removals are visible immediately.
type DirectoryRegistry struct {
	roots    []string
	dataRoot string
	logger   *slog.Logger
}

// NewDirectoryRegistry scans plugins and builtins roots; each plugin owns a
// data directory at <dataRoot>/<slug>.
func NewDirectoryRegistry(pluginsRoot, builtinsRoot, dataRoot string, logger *slog.Logger) *DirectoryRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	var roots []string
	for _, r := range []string{pluginsRoot, builtinsRoot} {
		if r != "" {
			roots = append(roots, r)
		}
	}
	return &DirectoryRegistry{roots: roots, dataRoot: dataRoot, logger: logger}
}

// Lookup implements InstalledRegistry.
func (r *DirectoryRegistry) Lookup(slug string) (Record, bool) {
	records, err := r.scan()
	if err != nil {
		r.logger.Warn("scan installed plugins", "err", err)
	}
	rec, ok := records[slug]
	return rec, ok
}

// Snapshot implements Snapshotter with one scan of every root.
func (r *DirectoryRegistry) Snapshot() InstalledRegistry {
	records, err := r.scan()
	if err != nil {
		r.logger.Warn("scan installed plugins", "err", err)
	}
	return &MapRegistry{records: records}
}

// List returns every installed plugin sorted by slug.
func (r *DirectoryRegistry) List() ([]Record, error) {
	records, err := r.scan()
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Slug < out[j].Manifest.Slug })
	return out, err
}

func (r *DirectoryRegistry) scan() (map[string]Record, error) {
	records := make(map[string]Record)
	var errs []error
	for _, root := range r.roots {
		entries, err := os.ReadDir(root)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("scan directory %s: %w", root, err))
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			m, err := loadInstalledManifest(filepath.Join(dir, "manifest.json"))
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					r.logger.Debug("skipping plugin directory", "dir", dir, "err", err)
				}
				continue
			}
			if _, dup := records[m.Slug]; dup {
				continue
			}
			paths := map[string]string{PathPlugin: dir}
			if r.dataRoot != "" {
				paths[PathData] = filepath.Join(r.dataRoot, m.Slug)
			}
			records[m.Slug] = Record{Manifest: m, Paths: paths}
		}
	}
	return records, errors.Join(errs...)
}

func loadInstalledManifest(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m.Slug == "" {
		return nil, fmt.Errorf("%s: missing slug", path)
	}
	return &m, nil
}
