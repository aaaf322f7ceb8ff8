// Package manifest defines the marketplace data model: the mirror-list entries
// that point at plugin repositories, the plugin manifest documents those
// repositories publish, and the URLs derived from them.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Type classifies a plugin. Core plugins install into the builtins root,
// every other type into the regular plugins root.
type Type string

const (
	TypeCore      Type = "core"
	TypeExtension Type = "extension"
	TypeTheme     Type = "theme"
	TypeFramework Type = "framework"
)

// Types lists the known plugin classifications in display order.
var Types = []Type{TypeCore, TypeExtension, TypeTheme, TypeFramework}

// Label returns the human readable name of the type.
func (t Type) Label() string {
	switch t {
	case TypeCore:
		return "Core"
	case TypeExtension:
		return "Extension"
	case TypeTheme:
		return "Theme"
	case TypeFramework:
		return "Framework"
	}
	return string(t)
}

// Release names a prebuilt asset attached to a tagged release.
type Release struct {
	Tag   string `json:"tag" yaml:"tag" validate:"required"`
	Asset string `json:"file" yaml:"file" validate:"required"`
}

// IsLatest reports whether the release points at the moving "latest" tag.
func (r *Release) IsLatest() bool {
	return r != nil && r.Tag == "latest"
}

// Repository is the source location of a plugin, optionally with a release.
type Repository struct {
	Repo    string   `json:"repo" yaml:"repo" validate:"required"` // owner/name
	Branch  string   `json:"branch" yaml:"branch" validate:"required"`
	Release *Release `json:"release,omitempty" yaml:"release,omitempty" validate:"omitempty"`
}

// Ref returns the repository without its release information.
func (r Repository) Ref() RepositoryRef {
	return RepositoryRef{Repo: r.Repo, Branch: r.Branch}
}

// UnmarshalJSON accepts "owner_and_name" as an alias of "repo".
func (r *Repository) UnmarshalJSON(data []byte) error {
	var raw struct {
		Repo         string   `json:"repo"`
		OwnerAndName string   `json:"owner_and_name"`
		Branch       string   `json:"branch"`
		Release      *Release `json:"release"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Repo = firstNonEmpty(raw.Repo, raw.OwnerAndName)
	r.Branch = raw.Branch
	r.Release = raw.Release
	return nil
}

// Author credits a plugin author.
type Author struct {
	Name string `json:"name" yaml:"name"`
	Link string `json:"link,omitempty" yaml:"link,omitempty"`
}

// Authors decodes either a single author object or a list of them.
type Authors []Author

// UnmarshalJSON implements json.Unmarshaler.
func (a *Authors) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	switch data[0] {
	case '[':
		var list []Author
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*a = list
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = Authors{{Name: name}}
	default:
		var one Author
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*a = Authors{one}
	}
	return nil
}

// Primary returns the first listed author, or the zero Author.
func (a Authors) Primary() Author {
	if len(a) == 0 {
		return Author{}
	}
	return a[0]
}

// Manifest describes one installable plugin. Slug is the primary key.
type Manifest struct {
	Slug        string     `json:"slug" yaml:"slug" validate:"required"`
	Name        string     `json:"name" yaml:"name" validate:"required"`
	Description string     `json:"description" yaml:"description"`
	Version     string     `json:"version" yaml:"version" validate:"required"`
	Type        Type       `json:"type" yaml:"type" validate:"omitempty,oneof=core extension theme framework"`
	Platform    []string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Authors     Authors    `json:"author,omitempty" yaml:"author,omitempty"`
	Repository  Repository `json:"repository" yaml:"repository"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the manifest carries every field the lifecycle needs.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.New("manifest: nil")
	}
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("manifest %q: invalid fields: %s", m.Slug, strings.Join(fields, ", "))
		}
		return fmt.Errorf("manifest %q: %w", m.Slug, err)
	}
	return nil
}

// SupportsPlatform reports whether the plugin lists the given OS token.
func (m *Manifest) SupportsPlatform(platform string) bool {
	for _, p := range m.Platform {
		if p == platform {
			return true
		}
	}
	return false
}

// IsCore reports whether the plugin belongs in the builtins root.
func (m *Manifest) IsCore() bool {
	return m.Type == TypeCore
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
