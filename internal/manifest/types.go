// Package manifest validates publication input and builds the version manifest
// sent to the registry, grouping platforms that share one artifact.
package manifest

import (
	"encoding/json"
	"fmt"
)

// PublicationInput describes one version to publish.
type PublicationInput struct {
	Owner       string
	Slug        string
	Version     string
	Channel     string
	Description *string
	Endpoint    string
	APIKey      string
	Platforms   []PlatformTarget
}

// PlatformTarget is the per-platform part of a publication. Exactly one of
// File and URL must be set.
type PlatformTarget struct {
	Platform         string
	File             string
	URL              string
	PlatformVersions []string
	Dependencies     []DependencyDecl
}

// DependencyDecl is an unvalidated dependency declaration. Exactly one of
// Hangar and URL must be set.
type DependencyDecl struct {
	Name     string
	Required bool
	Hangar   *HangarRef
	URL      string
}

// Target is where a dependency is obtained from: HangarRef or URLRef.
type Target interface {
	target()
}

// HangarRef points at another project on the same registry.
type HangarRef struct {
	Owner string `json:"owner"`
	Slug  string `json:"slug"`
}

// URLRef points at an external download.
type URLRef struct {
	URL string
}

func (HangarRef) target() {}
func (URLRef) target()    {}

// Dependency is a validated plugin dependency.
type Dependency struct {
	Name     string
	Required bool
	Target   Target
}

// NewDependency validates decl and returns its resolved form.
func NewDependency(decl DependencyDecl) (Dependency, error) {
	hasHangar := decl.Hangar != nil
	hasURL := decl.URL != ""
	if hasHangar == hasURL {
		return Dependency{}, &ValidationError{Kind: ErrAmbiguousDependency, Subject: decl.Name}
	}

	dep := Dependency{Name: decl.Name, Required: decl.Required}
	if hasHangar {
		dep.Target = *decl.Hangar
	} else {
		dep.Target = URLRef{URL: decl.URL}
	}
	return dep, nil
}

// MarshalJSON emits either a namespace or an externalUrl, never both.
func (d Dependency) MarshalJSON() ([]byte, error) {
	out := struct {
		Name        string     `json:"name"`
		Required    bool       `json:"required"`
		Namespace   *HangarRef `json:"namespace,omitempty"`
		ExternalURL string     `json:"externalUrl,omitempty"`
	}{Name: d.Name, Required: d.Required}

	switch t := d.Target.(type) {
	case HangarRef:
		out.Namespace = &t
	case URLRef:
		out.ExternalURL = t.URL
	default:
		return nil, fmt.Errorf("dependency %s: unsupported target %T", d.Name, d.Target)
	}
	return json.Marshal(out)
}

// Source is where a file group's artifact comes from: LocalFile or RemoteURL.
type Source interface {
	source()
}

// LocalFile is an artifact uploaded with the request. Path is the file as the
// group's first platform declared it; Key is its canonical path, used only to
// detect platforms sharing one artifact.
type LocalFile struct {
	Path string
	Key  string
}

// RemoteURL is an artifact the registry downloads itself.
type RemoteURL struct {
	URL string
}

func (LocalFile) source() {}
func (RemoteURL) source() {}

// FileGroup is one entry of the manifest's files array.
type FileGroup struct {
	Platforms []string
	Source    Source
}

func newFileGroup(platforms []string, src Source) (FileGroup, error) {
	if len(platforms) == 0 {
		return FileGroup{}, &ValidationError{Kind: ErrEmptyPlatformGroup}
	}
	return FileGroup{Platforms: platforms, Source: src}, nil
}

// MarshalJSON emits externalUrl only for URL-backed groups.
func (g FileGroup) MarshalJSON() ([]byte, error) {
	out := struct {
		Platforms   []string `json:"platforms"`
		ExternalURL string   `json:"externalUrl,omitempty"`
	}{Platforms: g.Platforms}

	if remote, ok := g.Source.(RemoteURL); ok {
		out.ExternalURL = remote.URL
	}
	return json.Marshal(out)
}

// VersionManifest is the versionUpload payload. Field order matches the wire format.
type VersionManifest struct {
	Version              string                  `json:"version"`
	PluginDependencies   map[string][]Dependency `json:"pluginDependencies"`
	PlatformDependencies map[string][]string     `json:"platformDependencies"`
	Description          *string                 `json:"description"`
	Files                []FileGroup             `json:"files"`
	Channel              string                  `json:"channel"`
}

// LocalFiles returns the artifact paths to attach, in manifest order.
func (m *VersionManifest) LocalFiles() []string {
	var paths []string
	for _, g := range m.Files {
		if local, ok := g.Source.(LocalFile); ok {
			paths = append(paths, local.Path)
		}
	}
	return paths
}
