package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoCodeAlone/marketplace/archive"
	"github.com/GoCodeAlone/marketplace/manifest"
)

// Roots are the host directories the lifecycle writes into.
type Roots struct {
	PluginsCache string `yaml:"plugins_cache" json:"plugins_cache"`
	Plugins      string `yaml:"plugins" json:"plugins"`
	Builtins     string `yaml:"builtins" json:"builtins"`
	Data         string `yaml:"data" json:"data"`
}

// Installer downloads a plugin archive, keeps a copy in the plugins cache and
// extracts it into the plugin root for its type.
type Installer struct {
	fetch Fetcher
	roots Roots
	options
}

// NewInstaller creates an Installer.
func NewInstaller(fetch Fetcher, roots Roots, opts ...Option) *Installer {
	return &Installer{fetch: fetch, roots: roots, options: newOptions(opts)}
}

// CachePath is where the downloaded archive of slug is kept.
func (i *Installer) CachePath(slug string, format archive.Format) string {
	return filepath.Join(i.roots.PluginsCache, "marketplace", slug+format.Ext())
}

// Destination returns the directory the archive for m is extracted into:
// the builtins root for core plugins, the plugins root otherwise, plus the
// slug for release assets. Source archives carry their own top-level directory.
func (i *Installer) Destination(m *manifest.Manifest, kind manifest.SourceKind) (string, error) {
	root := i.roots.Plugins
	if m.IsCore() {
		root = i.roots.Builtins
	}
	if kind != manifest.SourceRelease {
		return root, nil
	}
	return slugDir(root, m.Slug)
}

// Install runs download, cache, extract. Failures are returned as typed
// results; files already written stay in place.
func (i *Installer) Install(ctx context.Context, m *manifest.Manifest) Result {
	src := i.endpoints.InstallSource(m)
	log := i.logger.With("slug", m.Slug, "source", src.Kind.String())

	dest, err := i.Destination(m, src.Kind)
	if err != nil {
		return fail(KindFilesystem, err)
	}
	if _, err := slugDir(i.roots.PluginsCache, m.Slug); err != nil {
		return fail(KindFilesystem, err)
	}

	log.Debug("downloading plugin", "url", src.URL)
	data, err := i.fetch.Request(ctx, src.URL)
	if err != nil {
		return fail(KindNetwork, fmt.Errorf("download %s: %w", src.URL, err))
	}
	i.metrics.AddDownloadBytes(len(data))

	format := archive.Detect(data)
	cachePath := i.CachePath(m.Slug, format)
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fail(KindFilesystem, fmt.Errorf("create plugins cache: %w", err))
	}
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		return fail(KindFilesystem, fmt.Errorf("write %s: %w", cachePath, err))
	}

	if err := i.extractor.Extract(ctx, data, dest); err != nil {
		if errors.Is(err, archive.ErrCorrupt) {
			return fail(KindArchiveCorrupt, fmt.Errorf("extract %s: %w", cachePath, err))
		}
		return fail(KindFilesystem, fmt.Errorf("extract to %s: %w", dest, err))
	}
	log.Info("plugin extracted", "dest", dest, "format", format.String(), "bytes", len(data))
	return Success
}

// slugDir joins root and slug, rejecting slugs that are not a single path element.
func slugDir(root, slug string) (string, error) {
	if slug == "" || slug == "." || slug == ".." || filepath.Base(slug) != slug {
		return "", fmt.Errorf("invalid plugin slug %q", slug)
	}
	return archive.SafeJoin(root, slug)
}
