package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/plugin"
)

func TestPresent(t *testing.T) {
	m := &manifest.Manifest{
		Slug:      "pm",
		Name:      "Plugin Market",
		Version:   "1.2.0",
		Type:      manifest.TypeExtension,
		Platform:  []string{"win32", "linux", "darwin"},
		Thumbnail: "./icon.png",
		Authors:   manifest.Authors{{Name: "alice", Link: "https://a"}, {Name: "bob"}},
		Repository: manifest.Repository{
			Repo:   "alice/pm",
			Branch: "main",
		},
	}
	p := &Presenter{}
	got := p.Present(m)
	want := Item{
		Manifest:   m,
		Thumbnail:  "https://raw.githubusercontent.com/alice/pm/main/icon.png",
		TypeLabel:  "Extension",
		Platforms:  []string{"Windows", "Linux", "MacOS"},
		Author:     manifest.Author{Name: "alice", Link: "https://a"},
		DetailsURL: "https://github.com/alice/pm/tree/main",
		Status:     StatusNotInstalled,
		Action:     plugin.OpInstall,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Present mismatch (-want +got):\n%s", diff)
	}
	if got.PlatformText() != "Windows | Linux | MacOS" {
		t.Errorf("PlatformText = %q", got.PlatformText())
	}
}

func TestPresentNoThumbnail(t *testing.T) {
	m := &manifest.Manifest{Slug: "x", Repository: manifest.Repository{Repo: "a/x", Branch: "dev"}}
	if got := (&Presenter{}).Present(m).Thumbnail; got != "" {
		t.Errorf("Thumbnail = %q, want empty", got)
	}
}

func TestPresentInstallStatus(t *testing.T) {
	reg := plugin.NewMapRegistry()
	reg.Put(plugin.Record{Manifest: &manifest.Manifest{Slug: "same", Version: "1.0.0"}})
	reg.Put(plugin.Record{Manifest: &manifest.Manifest{Slug: "old", Version: "1.0.0"}})
	reg.Put(plugin.Record{Manifest: &manifest.Manifest{Slug: "newer", Version: "3.0.0"}})
	p := &Presenter{Registry: reg}

	tests := []struct {
		slug   string
		status Status
		action string
	}{
		{"same", StatusInstalled, plugin.OpUninstall},
		{"old", StatusOutdated, plugin.OpUpdate},
		{"newer", StatusInstalled, plugin.OpUninstall},
		{"absent", StatusNotInstalled, plugin.OpInstall},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			item := p.Present(&manifest.Manifest{Slug: tt.slug, Version: "2.0.0"})
			if item.Status != tt.status || item.Action != tt.action {
				t.Errorf("got %s/%s, want %s/%s", item.Status, item.Action, tt.status, tt.action)
			}
		})
	}
}

// scanCounter counts full scans and lookups against the live registry.
type scanCounter struct {
	*plugin.MapRegistry
	scans, lookups int
}

func (s *scanCounter) Lookup(slug string) (plugin.Record, bool) {
	s.lookups++
	return s.MapRegistry.Lookup(slug)
}

func (s *scanCounter) Snapshot() plugin.InstalledRegistry {
	s.scans++
	return s.MapRegistry
}

func TestPresentAllScansOnce(t *testing.T) {
	reg := &scanCounter{MapRegistry: plugin.NewMapRegistry()}
	reg.Put(plugin.Record{Manifest: &manifest.Manifest{Slug: "p3", Version: "0.1.0"}})
	p := &Presenter{Registry: reg}

	var page []*manifest.Manifest
	for i := range 10 {
		page = append(page, &manifest.Manifest{Slug: "p" + string(rune('0'+i)), Version: "1.0.0"})
	}
	items := p.PresentAll(page)

	if len(items) != 10 {
		t.Fatalf("items = %d", len(items))
	}
	if reg.scans != 1 || reg.lookups != 0 {
		t.Errorf("scans=%d live lookups=%d, want 1 and 0", reg.scans, reg.lookups)
	}
	if items[3].Status != StatusOutdated || items[0].Status != StatusNotInstalled {
		t.Errorf("statuses = %s %s", items[3].Status, items[0].Status)
	}
}

func TestPresentAllWithoutRegistry(t *testing.T) {
	items := (&Presenter{}).PresentAll([]*manifest.Manifest{{Slug: "x", Version: "1.0.0"}})
	if len(items) != 1 || items[0].Status != StatusNotInstalled {
		t.Errorf("items = %+v", items)
	}
}

func TestDedupe(t *testing.T) {
	a1 := &manifest.Manifest{Slug: "a", Version: "1"}
	b := &manifest.Manifest{Slug: "b"}
	a2 := &manifest.Manifest{Slug: "a", Version: "2"}
	got := Dedupe([]*manifest.Manifest{a1, b, nil, a2})
	if len(got) != 2 || got[0] != a2 || got[1] != b {
		t.Errorf("Dedupe = %+v", got)
	}
	if out := Dedupe(nil); out == nil || len(out) != 0 {
		t.Errorf("Dedupe(nil) = %#v, want empty slice", out)
	}
}
