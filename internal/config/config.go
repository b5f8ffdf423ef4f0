// Package config provides configuration management for hangarpub.
// It handles the YAML publication file: registry settings, publications,
// their platforms, dependencies and pages.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/clean-dependency-project/hangarpub/internal/hangar"
	"github.com/clean-dependency-project/hangarpub/internal/manifest"
	"github.com/clean-dependency-project/hangarpub/internal/platform"
	"github.com/clean-dependency-project/hangarpub/internal/version"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted for API keys.
const (
	EnvAPIKey       = "HANGARPUB_API_KEY"
	envPrefix       = "HANGARPUB_"
	envAPIKeySuffix = "_API_KEY"

	// ResourcePageName is the page name that addresses the project's main page.
	ResourcePageName = "MainResourcePage"

	defaultRequestTimeout = 60 * time.Second
)

// Sentinel errors for configuration validation
var (
	ErrVersionRequired            = errors.New("version is required")
	ErrNoPublications             = errors.New("at least one publication must be configured")
	ErrOwnerRequired              = errors.New("owner is required")
	ErrSlugRequired               = errors.New("slug is required")
	ErrPublicationVersionRequired = errors.New("publication version is required")
	ErrChannelRequired            = errors.New("channel is required")
	ErrNoPlatforms                = errors.New("at least one platform must be configured")
	ErrChangelogSources           = errors.New("at most one of changelog, changelog_file and changelog_github may be set")
	ErrGitHubChangelogIncomplete  = errors.New("changelog_github requires repository and tag")
	ErrDependencyNameRequired     = errors.New("dependency name is required")
	ErrPageNameRequired           = errors.New("page name is required")
	ErrPageContentRequired        = errors.New("exactly one of content and content_file is required")
	ErrAPIKeyRequired             = errors.New("no api key configured")
	ErrPublicationNotFound        = errors.New("publication not found")
)

// Config represents the top-level configuration structure.
type Config struct {
	Version      string                 `yaml:"version"`
	Metadata     Metadata               `yaml:"metadata"`
	Config       GlobalConfig           `yaml:"config"`
	Publications map[string]Publication `yaml:"publications"`

	// baseDir anchors relative file paths; set by LoadConfig.
	baseDir string
}

// Metadata represents metadata about the configuration.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// StorageConfig represents storage configuration for publish history.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// GlobalConfig represents global configuration settings.
type GlobalConfig struct {
	APIEndpoint    string        `yaml:"api_endpoint"`
	RequestTimeout string        `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
	RequireSemver  bool          `yaml:"require_semver"`
	Storage        StorageConfig `yaml:"storage"`
}

// GetRequestTimeout parses and returns the registry request timeout
func (g *GlobalConfig) GetRequestTimeout() time.Duration {
	if g.RequestTimeout == "" {
		return defaultRequestTimeout
	}
	timeout, err := time.ParseDuration(g.RequestTimeout)
	if err != nil || timeout <= 0 {
		return defaultRequestTimeout
	}
	return timeout
}

// Publication is one Hangar project version to publish.
type Publication struct {
	Owner           string           `yaml:"owner"`
	Slug            string           `yaml:"slug"`
	Version         string           `yaml:"version"`
	Channel         string           `yaml:"channel"`
	Changelog       string           `yaml:"changelog,omitempty"`
	ChangelogFile   string           `yaml:"changelog_file,omitempty"`
	ChangelogGitHub *GitHubChangelog `yaml:"changelog_github,omitempty"`
	APIKey          string           `yaml:"api_key,omitempty"`
	APIEndpoint     string           `yaml:"api_endpoint,omitempty"`
	Platforms       []PlatformConfig `yaml:"platforms"`
	Pages           []PageConfig     `yaml:"pages,omitempty"`
}

// GitHubChangelog names a GitHub release whose body becomes the changelog.
type GitHubChangelog struct {
	Repository string `yaml:"repository"` // "owner/repo"
	Tag        string `yaml:"tag"`
}

// PlatformConfig declares one platform of a publication. Exactly one of
// File and URL is expected; the manifest builder enforces it.
type PlatformConfig struct {
	Platform         string             `yaml:"platform"`
	File             string             `yaml:"file,omitempty"`
	URL              string             `yaml:"url,omitempty"`
	PlatformVersions []string           `yaml:"platform_versions"`
	Dependencies     []DependencyConfig `yaml:"dependencies,omitempty"`
}

// DependencyConfig declares a plugin dependency. Required defaults to true.
type DependencyConfig struct {
	Name     string           `yaml:"name"`
	Required *bool            `yaml:"required,omitempty"`
	Hangar   *HangarRefConfig `yaml:"hangar,omitempty"`
	URL      string           `yaml:"url,omitempty"`
}

// HangarRefConfig references another Hangar project.
type HangarRefConfig struct {
	Owner string `yaml:"owner"`
	Slug  string `yaml:"slug"`
}

// PageConfig is a project page synced by sync-pages.
type PageConfig struct {
	Name        string `yaml:"name"`
	Content     string `yaml:"content,omitempty"`
	ContentFile string `yaml:"content_file,omitempty"`
}

// LoadConfig loads and parses the publication configuration from a YAML file.
// Platform identifiers are normalized to upper case.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}
	config.baseDir = filepath.Dir(filePath)
	config.normalize()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func (c *Config) normalize() {
	for name, pub := range c.Publications {
		for i := range pub.Platforms {
			pub.Platforms[i].Platform = platform.Normalize(pub.Platforms[i].Platform)
		}
		c.Publications[name] = pub
	}
}

// Validate validates the configuration structure and required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return ErrVersionRequired
	}
	if len(c.Publications) == 0 {
		return ErrNoPublications
	}
	for _, name := range c.PublicationNames() {
		pub := c.Publications[name]
		if err := pub.Validate(c.Config.RequireSemver); err != nil {
			return fmt.Errorf("publication %s: %w", name, err)
		}
	}
	return nil
}

// Validate validates a publication's shape. File/URL and dependency target
// exclusivity are checked when the manifest is built.
func (p *Publication) Validate(requireSemver bool) error {
	if p.Owner == "" {
		return ErrOwnerRequired
	}
	if p.Slug == "" {
		return ErrSlugRequired
	}
	if p.Version == "" {
		return ErrPublicationVersionRequired
	}
	if requireSemver {
		if err := version.New().ValidateVersion(p.Version); err != nil {
			return err
		}
	}
	if p.Channel == "" {
		return ErrChannelRequired
	}

	sources := 0
	for _, set := range []bool{p.Changelog != "", p.ChangelogFile != "", p.ChangelogGitHub != nil} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return ErrChangelogSources
	}
	if gh := p.ChangelogGitHub; gh != nil && (gh.Repository == "" || gh.Tag == "") {
		return ErrGitHubChangelogIncomplete
	}

	if len(p.Platforms) == 0 {
		return ErrNoPlatforms
	}
	ids := make([]string, 0, len(p.Platforms))
	for _, pc := range p.Platforms {
		ids = append(ids, pc.Platform)
	}
	if _, err := platform.ResolvePlatforms(ids); err != nil {
		return err
	}
	for _, pc := range p.Platforms {
		for _, dep := range pc.Dependencies {
			if dep.Name == "" {
				return fmt.Errorf("platform %s: %w", pc.Platform, ErrDependencyNameRequired)
			}
		}
	}

	for _, page := range p.Pages {
		if page.Name == "" {
			return ErrPageNameRequired
		}
		if (page.Content == "") == (page.ContentFile == "") {
			return fmt.Errorf("page %s: %w", page.Name, ErrPageContentRequired)
		}
	}
	return nil
}

// PublicationNames returns the configured publication names, sorted.
func (c *Config) PublicationNames() []string {
	names := make([]string, 0, len(c.Publications))
	for name := range c.Publications {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPublication returns the named publication.
func (c *Config) GetPublication(name string) (Publication, error) {
	pub, ok := c.Publications[name]
	if !ok {
		return Publication{}, fmt.Errorf("%w: %s", ErrPublicationNotFound, name)
	}
	return pub, nil
}

// Endpoint returns the normalized registry endpoint for a publication.
func (c *Config) Endpoint(pub Publication) string {
	if pub.APIEndpoint != "" {
		return hangar.NormalizeEndpoint(pub.APIEndpoint)
	}
	return hangar.NormalizeEndpoint(c.Config.APIEndpoint)
}

// ResolvePath anchors a relative path at the config file's directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// APIKeyEnvVar returns the per-publication environment variable name,
// e.g. "my-plugin" becomes HANGARPUB_MY_PLUGIN_API_KEY.
func APIKeyEnvVar(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return envPrefix + b.String() + envAPIKeySuffix
}

// ResolveAPIKey picks the publication's api_key, then its environment
// variable, then HANGARPUB_API_KEY.
func ResolveAPIKey(name string, pub Publication, getenv func(string) string) (string, error) {
	if pub.APIKey != "" {
		return pub.APIKey, nil
	}
	if key := getenv(APIKeyEnvVar(name)); key != "" {
		return key, nil
	}
	if key := getenv(EnvAPIKey); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w for publication %s: set api_key, %s or %s", ErrAPIKeyRequired, name, APIKeyEnvVar(name), EnvAPIKey)
}

// LocalChangelog returns the inline or file changelog, or nil when the
// publication has none (or takes it from GitHub).
func (c *Config) LocalChangelog(pub Publication) (*string, error) {
	switch {
	case pub.Changelog != "":
		text := pub.Changelog
		return &text, nil
	case pub.ChangelogFile != "":
		data, err := os.ReadFile(c.ResolvePath(pub.ChangelogFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read changelog file: %w", err)
		}
		text := string(data)
		return &text, nil
	default:
		return nil, nil
	}
}

// PageContent returns the page's inline content or reads its file.
func (c *Config) PageContent(page PageConfig) (string, error) {
	if page.ContentFile == "" {
		return page.Content, nil
	}
	data, err := os.ReadFile(c.ResolvePath(page.ContentFile))
	if err != nil {
		return "", fmt.Errorf("failed to read page %s content: %w", page.Name, err)
	}
	return string(data), nil
}

// PagePath maps a page name to the path the page edit endpoint expects.
func PagePath(name string) string {
	if name == ResourcePageName {
		return ""
	}
	return name
}

// PublicationInput converts a configured publication into manifest input.
func (c *Config) PublicationInput(pub Publication, apiKey string, description *string) manifest.PublicationInput {
	targets := make([]manifest.PlatformTarget, 0, len(pub.Platforms))
	for _, pc := range pub.Platforms {
		deps := make([]manifest.DependencyDecl, 0, len(pc.Dependencies))
		for _, dc := range pc.Dependencies {
			decl := manifest.DependencyDecl{
				Name:     dc.Name,
				Required: dc.Required == nil || *dc.Required,
				URL:      dc.URL,
			}
			if dc.Hangar != nil {
				decl.Hangar = &manifest.HangarRef{Owner: dc.Hangar.Owner, Slug: dc.Hangar.Slug}
			}
			deps = append(deps, decl)
		}

		targets = append(targets, manifest.PlatformTarget{
			Platform:         pc.Platform,
			File:             c.ResolvePath(pc.File),
			URL:              pc.URL,
			PlatformVersions: pc.PlatformVersions,
			Dependencies:     deps,
		})
	}

	return manifest.PublicationInput{
		Owner:       pub.Owner,
		Slug:        pub.Slug,
		Version:     pub.Version,
		Channel:     pub.Channel,
		Description: description,
		Endpoint:    c.Endpoint(pub),
		APIKey:      apiKey,
		Platforms:   targets,
	}
}

// DefaultConfig returns a starter configuration with one Paper publication.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Metadata: Metadata{
			Name: "hangarpub",
		},
		Config: GlobalConfig{
			APIEndpoint:    hangar.DefaultEndpoint,
			RequestTimeout: "60s",
			UserAgent:      hangar.DefaultUserAgent,
		},
		Publications: map[string]Publication{
			"main": {
				Owner:         "your-name",
				Slug:          "your-plugin",
				Version:       "1.0.0",
				Channel:       "Release",
				ChangelogFile: "CHANGELOG.md",
				Platforms: []PlatformConfig{
					{
						Platform:         "PAPER",
						File:             "build/libs/your-plugin.jar",
						PlatformVersions: []string{"1.21"},
					},
				},
				Pages: []PageConfig{
					{Name: ResourcePageName, ContentFile: "README.md"},
				},
			},
		},
	}
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}
