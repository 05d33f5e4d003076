package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"

	errs "github.com/matzehuels/modmarket/pkg/errors"
)

// Module describes a module published on the marketplace.
//
// Modules are immutable once fetched. LatestCompatibleVersion is nil when
// no release works with the running application version.
type Module struct {
	ID                      string   `json:"id"`
	Name                    string   `json:"name"`
	Description             string   `json:"description"`
	LatestVersion           string   `json:"latestVersion"`
	LatestCompatibleVersion *Release `json:"latestCompatibleVersion,omitempty"`
}

// CompatibleVersion returns the latest compatible version, or "" if none.
func (m Module) CompatibleVersion() string {
	if m.LatestCompatibleVersion == nil {
		return ""
	}
	return m.LatestCompatibleVersion.Version
}

// Release is an installable version of a module. DownloadURL is only
// filled by the info endpoint.
type Release struct {
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// UnmarshalJSON accepts a bare version string (list endpoint), an object
// (info endpoint), or false, which some marketplace versions send instead
// of omitting the field.
func (r *Release) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		return fmt.Errorf("empty release")
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*r = Release{Version: v}
		return nil
	case bytes.Equal(b, []byte("false")):
		*r = Release{}
		return nil
	}

	type plain Release
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	*r = Release(p)
	return nil
}

// Catalog maps module ids to their descriptors. Callers must not modify
// a catalog returned by the client.
type Catalog map[string]Module

// UnmarshalJSON accepts the usual object keyed by module id, and an empty
// array, which is how the marketplace encodes an empty list.
func (c *Catalog) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("[]")) {
		*c = Catalog{}
		return nil
	}
	m := make(map[string]Module)
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*c = m
	return nil
}

func (m *Module) normalize() {
	if r := m.LatestCompatibleVersion; r != nil && r.Version == "" && r.DownloadURL == "" {
		m.LatestCompatibleVersion = nil
	}
}

func (m *Module) validate() error {
	if err := errs.ValidateModuleID(m.ID); err != nil {
		return errs.Wrap(errs.ErrCodeDecode, err, "invalid module id in catalog")
	}
	if r := m.LatestCompatibleVersion; r != nil {
		if r.Version == "" {
			return errs.New(errs.ErrCodeDecode, "module %s: compatible release without version", m.ID)
		}
		if r.DownloadURL != "" {
			if err := errs.ValidateURL(r.DownloadURL); err != nil {
				return errs.Wrap(errs.ErrCodeDecode, err, "module %s: bad download URL", m.ID)
			}
		}
	}
	return nil
}

// decodeCatalog parses a list response and checks every entry. Entry ids
// default to their key.
func decodeCatalog(data []byte) (Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, errs.Wrap(errs.ErrCodeDecode, err, "invalid module list")
	}
	if cat == nil {
		return nil, errs.New(errs.ErrCodeDecode, "module list is null")
	}
	for id, m := range cat {
		if m.ID == "" {
			m.ID = id
		}
		if m.ID != id {
			return nil, errs.New(errs.ErrCodeDecode, "module list entry %q has id %q", id, m.ID)
		}
		m.normalize()
		if err := m.validate(); err != nil {
			return nil, err
		}
		cat[id] = m
	}
	return cat, nil
}

// decodeModule parses an info response for id.
func decodeModule(id string, data []byte) (*Module, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errs.New(errs.ErrCodeDecode, "module info for %s is null", id)
	}
	var m Module
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.ErrCodeDecode, err, "invalid module info for %s", id)
	}
	if m.ID == "" {
		m.ID = id
	}
	m.normalize()
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
