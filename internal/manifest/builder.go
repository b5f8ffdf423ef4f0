package manifest

import (
	"fmt"
	"path/filepath"
)

// Canonicalizer maps a file path to the key used to detect shared artifacts.
type Canonicalizer func(path string) (string, error)

// CanonicalPath returns the absolute, symlink-free form of path.
// The file must exist.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to make %s absolute: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", abs, err)
	}
	return resolved, nil
}

// Builder turns PublicationInput into a VersionManifest. It holds no state
// between calls and is safe for concurrent use.
type Builder struct {
	canonicalize Canonicalizer
}

// NewBuilder creates a builder. A nil canonicalizer means CanonicalPath.
func NewBuilder(canonicalize Canonicalizer) *Builder {
	if canonicalize == nil {
		canonicalize = CanonicalPath
	}
	return &Builder{canonicalize: canonicalize}
}

// Build validates input and assembles its manifest. Nothing partial is
// returned on error.
func (b *Builder) Build(input PublicationInput) (*VersionManifest, error) {
	if len(input.Platforms) == 0 {
		return nil, &ValidationError{Kind: ErrNoPlatforms}
	}

	pluginDeps := make(map[string][]Dependency, len(input.Platforms))
	platformDeps := make(map[string][]string, len(input.Platforms))

	for _, target := range input.Platforms {
		if target.Platform == "" {
			return nil, &ValidationError{Kind: ErrUnnamedPlatform}
		}
		if _, seen := pluginDeps[target.Platform]; seen {
			return nil, &ValidationError{Kind: ErrDuplicatePlatform, Subject: target.Platform}
		}

		deps := make([]Dependency, 0, len(target.Dependencies))
		for _, decl := range target.Dependencies {
			dep, err := NewDependency(decl)
			if err != nil {
				return nil, err
			}
			deps = append(deps, dep)
		}
		pluginDeps[target.Platform] = deps

		versions := make([]string, len(target.PlatformVersions))
		copy(versions, target.PlatformVersions)
		platformDeps[target.Platform] = versions
	}

	files, err := b.groupFiles(input.Platforms)
	if err != nil {
		return nil, err
	}

	var description *string
	if input.Description != nil {
		d := *input.Description
		description = &d
	}

	return &VersionManifest{
		Version:              input.Version,
		PluginDependencies:   pluginDeps,
		PlatformDependencies: platformDeps,
		Description:          description,
		Files:                files,
		Channel:              input.Channel,
	}, nil
}

// groupFiles emits one group per distinct canonical file, then one per
// distinct URL, each in first-seen order.
func (b *Builder) groupFiles(targets []PlatformTarget) ([]FileGroup, error) {
	local := newOrderedGroups()
	remote := newOrderedGroups()

	for _, target := range targets {
		switch {
		case target.File != "" && target.URL != "":
			return nil, &ValidationError{Kind: ErrConflictingArtifact, Subject: target.Platform}
		case target.File != "":
			key, err := b.canonicalize(target.File)
			if err != nil {
				return nil, &ValidationError{Kind: ErrArtifactUnresolvable, Subject: target.Platform, Err: err}
			}
			local.add(key, target.Platform, target.File)
		case target.URL != "":
			remote.add(target.URL, target.Platform, target.URL)
		default:
			return nil, &ValidationError{Kind: ErrMissingArtifact, Subject: target.Platform}
		}
	}

	groups := make([]FileGroup, 0, len(local.keys)+len(remote.keys))
	for _, key := range local.keys {
		g, err := newFileGroup(local.platforms[key], LocalFile{Path: local.first[key], Key: key})
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	for _, key := range remote.keys {
		g, err := newFileGroup(remote.platforms[key], RemoteURL{URL: key})
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// orderedGroups is an insertion-ordered multimap from key to platforms. first
// keeps the value declared by the first platform added under each key.
type orderedGroups struct {
	keys      []string
	platforms map[string][]string
	first     map[string]string
}

func newOrderedGroups() *orderedGroups {
	return &orderedGroups{
		platforms: make(map[string][]string),
		first:     make(map[string]string),
	}
}

func (g *orderedGroups) add(key, platform, declared string) {
	if _, ok := g.platforms[key]; !ok {
		g.keys = append(g.keys, key)
		g.first[key] = declared
	}
	g.platforms[key] = append(g.platforms[key], platform)
}
