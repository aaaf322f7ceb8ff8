package manifest

import (
	"strings"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
)

func TestParseManifest(t *testing.T) {
	doc := `{
		"slug": "pm",
		"name": "Plugin Market",
		"description": "browse plugins",
		"version": "1.2.0",
		"type": "extension",
		"platform": ["win32", "linux", "darwin"],
		"thumbnail": "./thumb.png",
		"author": {"name": "mo", "link": "https://github.com/mo"},
		"repository": {"repo": "mo/pm", "branch": "main", "release": {"tag": "latest", "file": "pm.zip"}},
		"extra": true
	}`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Manifest{
		Slug:        "pm",
		Name:        "Plugin Market",
		Description: "browse plugins",
		Version:     "1.2.0",
		Type:        TypeExtension,
		Platform:    []string{"win32", "linux", "darwin"},
		Thumbnail:   "./thumb.png",
		Authors:     Authors{{Name: "mo", Link: "https://github.com/mo"}},
		Repository: Repository{
			Repo:    "mo/pm",
			Branch:  "main",
			Release: &Release{Tag: "latest", Asset: "pm.zip"},
		},
	}
	if diff := gocmp.Diff(want, m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestParseManifestAuthorList(t *testing.T) {
	doc := `{"slug":"a","name":"A","version":"1","type":"theme",
		"author":[{"name":"first"},{"name":"second"}],
		"repository":{"owner_and_name":"x/a","branch":"dev"}}`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m.Authors.Primary().Name; got != "first" {
		t.Errorf("primary author = %q, want first", got)
	}
	if m.Repository.Repo != "x/a" {
		t.Errorf("repo alias not applied: %q", m.Repository.Repo)
	}
	if m.Repository.Release != nil {
		t.Errorf("expected no release, got %+v", m.Repository.Release)
	}
}

func TestParseManifestInvalid(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"slug":`,
		"missing slug":   `{"name":"A","version":"1","repository":{"repo":"a/b","branch":"main"}}`,
		"missing repo":   `{"slug":"a","name":"A","version":"1","repository":{"branch":"main"}}`,
		"unknown type":   `{"slug":"a","name":"A","version":"1","type":"widget","repository":{"repo":"a/b","branch":"main"}}`,
		"release no tag": `{"slug":"a","name":"A","version":"1","repository":{"repo":"a/b","branch":"main","release":{"file":"x.zip"}}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseMirrorList(t *testing.T) {
	doc := `[
		{"repo": "a/b", "branch": "main"},
		{"repository": {"branch": "main", "repo": "a/b"}},
		{"repository": {"owner_and_name": "c/d", "branch": "dev"}}
	]`
	entries, err := ParseMirrorList([]byte(doc))
	if err != nil {
		t.Fatalf("ParseMirrorList: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Key() != entries[1].Key() {
		t.Errorf("flat and nested forms should be equal: %s vs %s", entries[0].Key(), entries[1].Key())
	}
	if entries[2].Repository != (RepositoryRef{Repo: "c/d", Branch: "dev"}) {
		t.Errorf("unexpected third entry %+v", entries[2].Repository)
	}
}

func TestParseMirrorListRejectsMalformed(t *testing.T) {
	if _, err := ParseMirrorList([]byte(`{"repo":"a/b"}`)); err == nil {
		t.Error("expected error for non-array document")
	}
	if _, err := ParseMirrorList([]byte(`[{"branch":"main"}]`)); err == nil {
		t.Error("expected error for entry without repo")
	}
}

func TestInstallSource(t *testing.T) {
	e := DefaultEndpoints()
	tests := []struct {
		name string
		repo Repository
		kind SourceKind
		url  string
	}{
		{
			name: "latest release",
			repo: Repository{Repo: "o/n", Branch: "main", Release: &Release{Tag: "latest", Asset: "p.zip"}},
			kind: SourceRelease,
			url:  "https://github.com/o/n/releases/latest/download/p.zip",
		},
		{
			name: "tagged release",
			repo: Repository{Repo: "o/n", Branch: "main", Release: &Release{Tag: "v1.0.0", Asset: "p.zip"}},
			kind: SourceRelease,
			url:  "https://github.com/o/n/releases/download/v1.0.0/p.zip",
		},
		{
			name: "source archive",
			repo: Repository{Repo: "o/n", Branch: "main"},
			kind: SourceArchive,
			url:  "https://codeload.github.com/o/n/zip/refs/heads/main",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := e.InstallSource(&Manifest{Slug: "p", Repository: tt.repo})
			if src.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", src.Kind, tt.kind)
			}
			if src.URL != tt.url {
				t.Errorf("url = %q, want %q", src.URL, tt.url)
			}
		})
	}
}

func TestDerivedURLs(t *testing.T) {
	e := Endpoints{Raw: "http://raw.test/", GitHub: "http://gh.test"}.WithDefaults()
	ref := RepositoryRef{Repo: "o/n", Branch: "main"}
	if got := e.ManifestURL(ref); got != "http://raw.test/o/n/main/manifest.json" {
		t.Errorf("ManifestURL = %q", got)
	}
	if got := e.DetailsURL(ref); got != "http://gh.test/o/n/tree/main" {
		t.Errorf("DetailsURL = %q", got)
	}
	if !strings.HasPrefix(e.Codeload, "https://codeload.github.com") {
		t.Errorf("codeload default not applied: %q", e.Codeload)
	}
	m := &Manifest{Thumbnail: "./img/t.png", Repository: Repository{Repo: "o/n", Branch: "main"}}
	if got := e.ThumbnailURL(m); got != "http://raw.test/o/n/main/img/t.png" {
		t.Errorf("ThumbnailURL = %q", got)
	}
	m.Thumbnail = ""
	if got := e.ThumbnailURL(m); got != "" {
		t.Errorf("ThumbnailURL without thumbnail = %q", got)
	}
}

func TestCompareVersion(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"v1.0.0", "1.0.1", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0-beta", "1.0.0", -1},
		{"1.2", "1.2.0", 0},
		{"1.10", "1.9", 1},
		{"", "0.1.0", -1},
		{"1.0.0.1", "1.0.0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := CompareVersion(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareVersion(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
	if !NeedsUpdate("1.0.0", "1.1.0") || NeedsUpdate("1.1.0", "1.1.0") {
		t.Error("NeedsUpdate mismatch")
	}
}

func TestPlatform(t *testing.T) {
	if PlatformToken("windows") != PlatformWindows {
		t.Error("windows should map to win32")
	}
	if PlatformToken("linux") != PlatformLinux {
		t.Error("linux should map to itself")
	}
	if PlatformLabel("darwin") != "MacOS" || PlatformLabel("plan9") != "plan9" {
		t.Error("unexpected platform labels")
	}
	m := &Manifest{Platform: []string{"linux"}}
	if !m.SupportsPlatform("linux") || m.SupportsPlatform("win32") {
		t.Error("SupportsPlatform mismatch")
	}
}
