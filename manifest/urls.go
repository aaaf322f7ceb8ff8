package manifest

import (
	"net/url"
	"strings"
)

// Endpoints are the base URLs every marketplace URL is derived from.
type Endpoints struct {
	Raw      string `json:"raw" yaml:"raw"`           // raw file host, e.g. https://raw.githubusercontent.com
	GitHub   string `json:"github" yaml:"github"`     // web host, releases and tree pages
	Codeload string `json:"codeload" yaml:"codeload"` // source archive host
}

// DefaultEndpoints returns the public GitHub endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Raw:      "https://raw.githubusercontent.com",
		GitHub:   "https://github.com",
		Codeload: "https://codeload.github.com",
	}
}

// WithDefaults fills empty endpoints from DefaultEndpoints.
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Raw == "" {
		e.Raw = d.Raw
	}
	if e.GitHub == "" {
		e.GitHub = d.GitHub
	}
	if e.Codeload == "" {
		e.Codeload = d.Codeload
	}
	return e
}

// SourceKind tells the installer how an archive is laid out.
type SourceKind int

const (
	// SourceArchive is a raw branch snapshot with one top-level directory.
	SourceArchive SourceKind = iota
	// SourceRelease is a packaged release asset holding the plugin payload.
	SourceRelease
)

func (k SourceKind) String() string {
	if k == SourceRelease {
		return "release"
	}
	return "archive"
}

// Source is a resolved install location.
type Source struct {
	Kind SourceKind
	URL  string
}

// ManifestURL is where the manifest document of a repository lives.
func (e Endpoints) ManifestURL(ref RepositoryRef) string {
	return join(e.Raw, ref.Repo, ref.Branch, "manifest.json")
}

// ThumbnailURL returns the absolute thumbnail URL, or "" when the manifest
// has no thumbnail.
func (e Endpoints) ThumbnailURL(m *Manifest) string {
	if m.Thumbnail == "" {
		return ""
	}
	if strings.HasPrefix(m.Thumbnail, "http://") || strings.HasPrefix(m.Thumbnail, "https://") {
		return m.Thumbnail
	}
	return join(e.Raw, m.Repository.Repo, m.Repository.Branch, strings.TrimPrefix(m.Thumbnail, "./"))
}

// DetailsURL is the repository page for the plugin's branch.
func (e Endpoints) DetailsURL(ref RepositoryRef) string {
	return join(e.GitHub, ref.Repo, "tree", ref.Branch)
}

// InstallSource resolves where a plugin is downloaded from: the release
// asset when the manifest names one, otherwise the branch source archive.
func (e Endpoints) InstallSource(m *Manifest) Source {
	repo := m.Repository
	if rel := repo.Release; rel != nil {
		if rel.IsLatest() {
			return Source{Kind: SourceRelease, URL: join(e.GitHub, repo.Repo, "releases", "latest", "download", url.PathEscape(rel.Asset))}
		}
		return Source{Kind: SourceRelease, URL: join(e.GitHub, repo.Repo, "releases", "download", url.PathEscape(rel.Tag), url.PathEscape(rel.Asset))}
	}
	return Source{Kind: SourceArchive, URL: join(e.Codeload, repo.Repo, "zip", "refs", "heads", repo.Branch)}
}

func join(base string, parts ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(strings.Trim(p, "/"))
	}
	return b.String()
}
