package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clean-dependency-project/hangarpub/internal/hangar"
	"github.com/clean-dependency-project/hangarpub/internal/manifest"
	"github.com/clean-dependency-project/hangarpub/internal/platform"
	"github.com/clean-dependency-project/hangarpub/internal/version"
)

const validYAML = `
version: "1.0"
metadata:
  name: "test"
config:
  api_endpoint: "https://hangar.test/api/v1"
  request_timeout: "30s"
publications:
  widget:
    owner: acme
    slug: widget
    version: 1.2.0
    channel: Release
    changelog: "Fixed things"
    platforms:
      - platform: paper
        file: build/widget.jar
        platform_versions: ["1.20", "1.21"]
        dependencies:
          - name: Vault
            hangar: {owner: milkbowl, slug: vault}
          - name: Maps
            required: false
            url: https://example.com/maps
      - platform: velocity
        file: build/widget.jar
        platform_versions: ["3.3"]
    pages:
      - name: MainResourcePage
        content: "# Widget"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hangarpub.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		wantErr     error
		wantParse   bool
	}{
		{
			name:        "valid config",
			yamlContent: validYAML,
		},
		{
			name:        "invalid yaml",
			yamlContent: "version: [unclosed",
			wantParse:   true,
		},
		{
			name:        "missing version",
			yamlContent: strings.Replace(validYAML, `version: "1.0"`, "", 1),
			wantErr:     ErrVersionRequired,
		},
		{
			name: "no publications",
			yamlContent: `
version: "1.0"
publications: {}
`,
			wantErr: ErrNoPublications,
		},
		{
			name: "unknown platform",
			yamlContent: `
version: "1.0"
publications:
  widget:
    owner: acme
    slug: widget
    version: 1.0.0
    channel: Release
    platforms:
      - platform: forge
        file: a.jar
`,
			wantErr: platform.ErrUnknownPlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.yamlContent))

			if tt.wantParse {
				if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
					t.Fatalf("LoadConfig() error = %v, want parse error", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LoadConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() unexpected error = %v", err)
			}
			if cfg == nil {
				t.Fatal("LoadConfig() returned nil config")
			}
		})
	}
}

func TestLoadConfig_NormalizesPlatforms(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	pub, err := cfg.GetPublication("widget")
	if err != nil {
		t.Fatalf("GetPublication() error = %v", err)
	}
	if pub.Platforms[0].Platform != "PAPER" || pub.Platforms[1].Platform != "VELOCITY" {
		t.Errorf("platforms = %q, %q, want PAPER, VELOCITY", pub.Platforms[0].Platform, pub.Platforms[1].Platform)
	}
	if got := cfg.Config.GetRequestTimeout(); got != 30*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 30s", got)
	}
	if got := cfg.Endpoint(pub); got != "https://hangar.test/api/v1/" {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Error("LoadConfig() expected error for nonexistent file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig() error = %v, want os.ErrNotExist", err)
	}
}

func validPublication() Publication {
	return Publication{
		Owner:   "acme",
		Slug:    "widget",
		Version: "1.0.0",
		Channel: "Release",
		Platforms: []PlatformConfig{
			{Platform: "PAPER", File: "widget.jar", PlatformVersions: []string{"1.21"}},
		},
	}
}

func TestPublication_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(p *Publication)
		requireSemver bool
		wantErr       error
	}{
		{name: "valid", mutate: func(p *Publication) {}},
		{name: "missing owner", mutate: func(p *Publication) { p.Owner = "" }, wantErr: ErrOwnerRequired},
		{name: "missing slug", mutate: func(p *Publication) { p.Slug = "" }, wantErr: ErrSlugRequired},
		{name: "missing version", mutate: func(p *Publication) { p.Version = "" }, wantErr: ErrPublicationVersionRequired},
		{name: "missing channel", mutate: func(p *Publication) { p.Channel = "" }, wantErr: ErrChannelRequired},
		{name: "no platforms", mutate: func(p *Publication) { p.Platforms = nil }, wantErr: ErrNoPlatforms},
		{
			name:    "unknown platform",
			mutate:  func(p *Publication) { p.Platforms[0].Platform = "FORGE" },
			wantErr: platform.ErrUnknownPlatform,
		},
		{
			name:    "two changelog sources",
			mutate:  func(p *Publication) { p.Changelog = "x"; p.ChangelogFile = "CHANGELOG.md" },
			wantErr: ErrChangelogSources,
		},
		{
			name: "inline and github changelog",
			mutate: func(p *Publication) {
				p.Changelog = "x"
				p.ChangelogGitHub = &GitHubChangelog{Repository: "acme/widget", Tag: "v1.0.0"}
			},
			wantErr: ErrChangelogSources,
		},
		{
			name:    "github changelog without tag",
			mutate:  func(p *Publication) { p.ChangelogGitHub = &GitHubChangelog{Repository: "acme/widget"} },
			wantErr: ErrGitHubChangelogIncomplete,
		},
		{
			name: "unnamed dependency",
			mutate: func(p *Publication) {
				p.Platforms[0].Dependencies = []DependencyConfig{{URL: "https://example.com"}}
			},
			wantErr: ErrDependencyNameRequired,
		},
		{
			name:    "unnamed page",
			mutate:  func(p *Publication) { p.Pages = []PageConfig{{Content: "x"}} },
			wantErr: ErrPageNameRequired,
		},
		{
			name:    "page without content",
			mutate:  func(p *Publication) { p.Pages = []PageConfig{{Name: "About"}} },
			wantErr: ErrPageContentRequired,
		},
		{
			name:    "page with both contents",
			mutate:  func(p *Publication) { p.Pages = []PageConfig{{Name: "About", Content: "x", ContentFile: "about.md"}} },
			wantErr: ErrPageContentRequired,
		},
		{
			name:          "semver required",
			mutate:        func(p *Publication) { p.Version = "build-42" },
			requireSemver: true,
			wantErr:       version.ErrVersionParseFailed{},
		},
		{
			name:   "non semver allowed by default",
			mutate: func(p *Publication) { p.Version = "build-42" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := validPublication()
			tt.mutate(&pub)
			err := pub.Validate(tt.requireSemver)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	pub := validPublication()

	if _, err := ResolveAPIKey("my-plugin", pub, getenv); !errors.Is(err, ErrAPIKeyRequired) {
		t.Fatalf("ResolveAPIKey() error = %v, want ErrAPIKeyRequired", err)
	}

	env[EnvAPIKey] = "global"
	if key, _ := ResolveAPIKey("my-plugin", pub, getenv); key != "global" {
		t.Errorf("ResolveAPIKey() = %q, want global", key)
	}

	env["HANGARPUB_MY_PLUGIN_API_KEY"] = "scoped"
	if key, _ := ResolveAPIKey("my-plugin", pub, getenv); key != "scoped" {
		t.Errorf("ResolveAPIKey() = %q, want scoped", key)
	}

	pub.APIKey = "inline"
	if key, _ := ResolveAPIKey("my-plugin", pub, getenv); key != "inline" {
		t.Errorf("ResolveAPIKey() = %q, want inline", key)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := map[string]string{
		"widget":     "HANGARPUB_WIDGET_API_KEY",
		"my-plugin":  "HANGARPUB_MY_PLUGIN_API_KEY",
		"a.b c2":     "HANGARPUB_A_B_C2_API_KEY",
		"MixedCase1": "HANGARPUB_MIXEDCASE1_API_KEY",
	}
	for name, want := range tests {
		if got := APIKeyEnvVar(name); got != want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestGetRequestTimeout(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "", want: 60 * time.Second},
		{in: "5s", want: 5 * time.Second},
		{in: "garbage", want: 60 * time.Second},
		{in: "-1s", want: 60 * time.Second},
	}
	for _, tt := range tests {
		g := GlobalConfig{RequestTimeout: tt.in}
		if got := g.GetRequestTimeout(); got != tt.want {
			t.Errorf("GetRequestTimeout(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEndpoint(t *testing.T) {
	cfg := &Config{}
	pub := validPublication()
	if got := cfg.Endpoint(pub); got != hangar.DefaultEndpoint {
		t.Errorf("Endpoint() = %q, want default", got)
	}

	pub.APIEndpoint = "https://staging.test/api/v1"
	if got := cfg.Endpoint(pub); got != "https://staging.test/api/v1/" {
		t.Errorf("Endpoint() = %q, want publication override", got)
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{baseDir: "/project"}

	if got := cfg.ResolvePath("build/a.jar"); got != filepath.Join("/project", "build/a.jar") {
		t.Errorf("ResolvePath(relative) = %q", got)
	}
	if got := cfg.ResolvePath("/abs/a.jar"); got != "/abs/a.jar" {
		t.Errorf("ResolvePath(absolute) = %q", got)
	}
	if got := cfg.ResolvePath(""); got != "" {
		t.Errorf("ResolvePath(empty) = %q", got)
	}
}

func TestLocalChangelogAndPageContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte("from file"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{baseDir: dir}

	pub := validPublication()
	got, err := cfg.LocalChangelog(pub)
	if err != nil || got != nil {
		t.Errorf("LocalChangelog(none) = %v, %v, want nil, nil", got, err)
	}

	pub.Changelog = "inline"
	got, err = cfg.LocalChangelog(pub)
	if err != nil || got == nil || *got != "inline" {
		t.Errorf("LocalChangelog(inline) = %v, %v", got, err)
	}

	pub.Changelog = ""
	pub.ChangelogFile = "CHANGELOG.md"
	got, err = cfg.LocalChangelog(pub)
	if err != nil || got == nil || *got != "from file" {
		t.Errorf("LocalChangelog(file) = %v, %v", got, err)
	}

	pub.ChangelogFile = "missing.md"
	if _, err := cfg.LocalChangelog(pub); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LocalChangelog(missing) error = %v, want os.ErrNotExist", err)
	}

	content, err := cfg.PageContent(PageConfig{Name: "About", ContentFile: "CHANGELOG.md"})
	if err != nil || content != "from file" {
		t.Errorf("PageContent(file) = %q, %v", content, err)
	}
	content, err = cfg.PageContent(PageConfig{Name: "About", Content: "inline"})
	if err != nil || content != "inline" {
		t.Errorf("PageContent(inline) = %q, %v", content, err)
	}
}

func TestPagePath(t *testing.T) {
	if got := PagePath(ResourcePageName); got != "" {
		t.Errorf("PagePath(%q) = %q, want empty", ResourcePageName, got)
	}
	if got := PagePath("Docs/Setup"); got != "Docs/Setup" {
		t.Errorf("PagePath() = %q", got)
	}
}

func TestPublicationInput(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	pub, _ := cfg.GetPublication("widget")
	desc := "Fixed things"

	input := cfg.PublicationInput(pub, "key", &desc)

	if input.Owner != "acme" || input.Slug != "widget" || input.Version != "1.2.0" || input.Channel != "Release" {
		t.Errorf("PublicationInput() identity = %+v", input)
	}
	if input.APIKey != "key" || input.Endpoint != "https://hangar.test/api/v1/" {
		t.Errorf("PublicationInput() endpoint/key = %q/%q", input.Endpoint, input.APIKey)
	}
	if input.Description == nil || *input.Description != desc {
		t.Errorf("PublicationInput().Description = %v", input.Description)
	}
	if len(input.Platforms) != 2 {
		t.Fatalf("len(Platforms) = %d, want 2", len(input.Platforms))
	}

	paper := input.Platforms[0]
	if want := filepath.Join(filepath.Dir(path), "build", "widget.jar"); paper.File != want {
		t.Errorf("File = %q, want %q", paper.File, want)
	}

	wantDeps := []manifest.DependencyDecl{
		{Name: "Vault", Required: true, Hangar: &manifest.HangarRef{Owner: "milkbowl", Slug: "vault"}},
		{Name: "Maps", Required: false, URL: "https://example.com/maps"},
	}
	if len(paper.Dependencies) != len(wantDeps) {
		t.Fatalf("len(Dependencies) = %d, want %d", len(paper.Dependencies), len(wantDeps))
	}
	for i, want := range wantDeps {
		got := paper.Dependencies[i]
		if got.Name != want.Name || got.Required != want.Required || got.URL != want.URL {
			t.Errorf("Dependencies[%d] = %+v, want %+v", i, got, want)
		}
		if (got.Hangar == nil) != (want.Hangar == nil) || (got.Hangar != nil && *got.Hangar != *want.Hangar) {
			t.Errorf("Dependencies[%d].Hangar = %v, want %v", i, got.Hangar, want.Hangar)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() is invalid: %v", err)
	}
	if cfg.Config.APIEndpoint != hangar.DefaultEndpoint {
		t.Errorf("DefaultConfig() endpoint = %q", cfg.Config.APIEndpoint)
	}
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")

	if err := SaveConfig(DefaultConfig(), path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() after SaveConfig() error = %v", err)
	}
	pub, err := loaded.GetPublication("main")
	if err != nil {
		t.Fatalf("GetPublication(main) error = %v", err)
	}
	if pub.Slug != "your-plugin" || pub.Platforms[0].Platform != "PAPER" {
		t.Errorf("round-tripped publication = %+v", pub)
	}
}

func TestSaveConfig_InvalidPath(t *testing.T) {
	err := SaveConfig(DefaultConfig(), filepath.Join(t.TempDir(), "missing", "dir", "config.yaml"))
	if err == nil {
		t.Error("SaveConfig() expected error for invalid path")
	}
}

func TestGetPublication_NotFound(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.GetPublication("nope"); !errors.Is(err, ErrPublicationNotFound) {
		t.Errorf("GetPublication() error = %v, want ErrPublicationNotFound", err)
	}
	if got := cfg.PublicationNames(); len(got) != 1 || got[0] != "main" {
		t.Errorf("PublicationNames() = %v", got)
	}
}
