package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RepositoryRef is the minimal pointer to a plugin's source location.
type RepositoryRef struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// UnmarshalJSON accepts "owner_and_name" as an alias of "repo".
func (r *RepositoryRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Repo         string `json:"repo"`
		OwnerAndName string `json:"owner_and_name"`
		Branch       string `json:"branch"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Repo = firstNonEmpty(raw.Repo, raw.OwnerAndName)
	r.Branch = raw.Branch
	return nil
}

// MirrorEntry is one item of a mirror list document.
type MirrorEntry struct {
	Repository RepositoryRef `json:"repository"`
}

// UnmarshalJSON decodes both the nested form
// {"repository":{"repo":..,"branch":..}} and the flat form {"repo":..,"branch":..}.
func (e *MirrorEntry) UnmarshalJSON(data []byte) error {
	var nested struct {
		Repository *RepositoryRef `json:"repository"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	if nested.Repository != nil {
		e.Repository = *nested.Repository
	} else if err := json.Unmarshal(data, &e.Repository); err != nil {
		return err
	}
	if e.Repository.Repo == "" {
		return errors.New("mirror entry: repo is required")
	}
	return nil
}

// Key is the canonical serialization used for structural equality. Field
// order is fixed by the struct, so source key order never affects it.
func (e MirrorEntry) Key() string {
	data, err := json.Marshal(e)
	if err != nil {
		return e.Repository.Repo + "\x00" + e.Repository.Branch
	}
	return string(data)
}

// ParseMirrorList decodes a mirror list document: a JSON array of entries.
// Any malformed entry fails the whole document.
func ParseMirrorList(data []byte) ([]MirrorEntry, error) {
	var entries []MirrorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse mirror list: %w", err)
	}
	return entries, nil
}
