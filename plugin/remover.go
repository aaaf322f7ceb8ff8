package plugin

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/GoCodeAlone/marketplace/manifest"
)

// Remover deletes the paths an installed plugin owns.
type Remover struct {
	registry InstalledRegistry
	options
}

// NewRemover creates a Remover backed by registry.
func NewRemover(registry InstalledRegistry, opts ...Option) *Remover {
	return &Remover{registry: registry, options: newOptions(opts)}
}

// Uninstall removes the plugin's owned paths. In update mode only the plugin
// directory goes, so data survives the reinstall. Paths that are already
// gone count as removed.
func (r *Remover) Uninstall(ctx context.Context, m *manifest.Manifest, updateMode bool) Result {
	rec, ok := r.registry.Lookup(m.Slug)
	if !ok {
		return Result{Kind: KindNotFound, Err: fmt.Errorf("%w: %s", ErrNotInstalled, m.Slug)}
	}

	var paths []string
	if updateMode {
		paths = []string{rec.Paths[PathPlugin]}
	} else {
		keys := make([]string, 0, len(rec.Paths))
		for k := range rec.Paths {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			paths = append(paths, rec.Paths[k])
		}
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fail(KindCanceled, err)
		}
		if p == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return fail(KindFilesystem, fmt.Errorf("remove %s: %w", p, err))
		}
		r.logger.Debug("removed plugin path", "slug", m.Slug, "path", p)
	}
	return Success
}
