package catalog

import (
	"strings"

	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/plugin"
)

// Status is the install state of a catalog item on this host.
type Status string

const (
	StatusNotInstalled Status = "not-installed"
	StatusInstalled    Status = "installed"
	StatusOutdated     Status = "outdated"
)

// Action is the lifecycle operation offered for an item.
func (s Status) Action() string {
	switch s {
	case StatusInstalled:
		return plugin.OpUninstall
	case StatusOutdated:
		return plugin.OpUpdate
	}
	return plugin.OpInstall
}

// Item is one rendered catalog row.
type Item struct {
	Manifest         *manifest.Manifest `json:"manifest"`
	Thumbnail        string             `json:"thumbnail"`
	TypeLabel        string             `json:"type_label"`
	Platforms        []string           `json:"platforms"`
	Author           manifest.Author    `json:"author"`
	DetailsURL       string             `json:"details_url"`
	Status           Status             `json:"status"`
	Action           string             `json:"action"`
	InstalledVersion string             `json:"installed_version,omitempty"`
}

// PlatformText joins the platform labels the way the list shows them.
func (i Item) PlatformText() string {
	return strings.Join(i.Platforms, " | ")
}

// Presenter derives display data for manifests. A nil Registry reports
// every item as not installed.
type Presenter struct {
	Endpoints manifest.Endpoints
	Registry  plugin.InstalledRegistry
}

// Present builds the row for m.
func (p *Presenter) Present(m *manifest.Manifest) Item {
	return p.present(m, p.Registry)
}

// PresentAll builds the rows for one page. Registries that can snapshot
// are scanned once for the whole page.
func (p *Presenter) PresentAll(ms []*manifest.Manifest) []Item {
	reg := p.Registry
	if s, ok := reg.(plugin.Snapshotter); ok {
		reg = s.Snapshot()
	}
	items := make([]Item, 0, len(ms))
	for _, m := range ms {
		items = append(items, p.present(m, reg))
	}
	return items
}

func (p *Presenter) present(m *manifest.Manifest, reg plugin.InstalledRegistry) Item {
	endpoints := p.Endpoints.WithDefaults()
	item := Item{
		Manifest:   m,
		Thumbnail:  endpoints.ThumbnailURL(m),
		TypeLabel:  m.Type.Label(),
		Author:     m.Authors.Primary(),
		DetailsURL: endpoints.DetailsURL(m.Repository.Ref()),
		Status:     StatusNotInstalled,
	}
	for _, token := range m.Platform {
		item.Platforms = append(item.Platforms, manifest.PlatformLabel(token))
	}
	if reg != nil {
		if rec, ok := reg.Lookup(m.Slug); ok {
			item.Status = StatusInstalled
			if rec.Manifest != nil {
				item.InstalledVersion = rec.Manifest.Version
				if manifest.NeedsUpdate(rec.Manifest.Version, m.Version) {
					item.Status = StatusOutdated
				}
			}
		}
	}
	item.Action = item.Status.Action()
	return item
}

// Dedupe collapses manifests sharing a slug. The manifest resolved last
// wins and takes the position of the slug's first occurrence.
func Dedupe(ms []*manifest.Manifest) []*manifest.Manifest {
	index := make(map[string]int, len(ms))
	out := make([]*manifest.Manifest, 0, len(ms))
	for _, m := range ms {
		if m == nil {
			continue
		}
		if i, ok := index[m.Slug]; ok {
			out[i] = m
			continue
		}
		index[m.Slug] = len(out)
		out = append(out, m)
	}
	return out
}
