package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clean-dependency-project/hangarpub/internal/config"
	"github.com/clean-dependency-project/hangarpub/internal/logger"
	"github.com/clean-dependency-project/hangarpub/internal/publish"
)

// ErrConfigRequired is returned by NewRunner without a configuration.
var ErrConfigRequired = errors.New("configuration is required")

// Runner turns configured publications into publish jobs and page edits.
type Runner struct {
	cfg        *config.Config
	getenv     func(string) string
	changelogs ChangelogFactory
	stdout     *slog.Logger
	stderr     *slog.Logger
}

// NewRunner creates a runner. changelogs may be nil when no publication uses
// changelog_github.
func NewRunner(cfg *config.Config, getenv func(string) string, changelogs ChangelogFactory, stdout, stderr *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if getenv == nil {
		return nil, fmt.Errorf("environment lookup is required")
	}
	if stdout == nil {
		stdout = logger.Discard()
	}
	if stderr == nil {
		stderr = logger.Discard()
	}

	return &Runner{
		cfg:        cfg,
		getenv:     getenv,
		changelogs: changelogs,
		stdout:     stdout,
		stderr:     stderr,
	}, nil
}

// Select returns the named publication, or all of them sorted when name is empty.
func (r *Runner) Select(name string) ([]string, error) {
	if name == "" {
		return r.cfg.PublicationNames(), nil
	}
	if _, err := r.cfg.GetPublication(name); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// Description resolves the publication's changelog from its inline text,
// its file or a GitHub release.
func (r *Runner) Description(ctx context.Context, pub config.Publication) (*string, error) {
	if pub.ChangelogGitHub == nil {
		return r.cfg.LocalChangelog(pub)
	}
	if r.changelogs == nil {
		return nil, fmt.Errorf("changelog_github is configured but no GitHub client is available")
	}

	fetcher, err := r.changelogs(pub.ChangelogGitHub.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	notes, err := fetcher.ReleaseNotes(ctx, pub.ChangelogGitHub.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changelog from %s@%s: %w",
			pub.ChangelogGitHub.Repository, pub.ChangelogGitHub.Tag, err)
	}

	r.stdout.Debug("loaded changelog from GitHub release",
		"repository", pub.ChangelogGitHub.Repository,
		"tag", pub.ChangelogGitHub.Tag)
	return &notes, nil
}

// Jobs builds publish jobs for names. With requireKey false a missing API key
// is tolerated, which dry runs rely on.
func (r *Runner) Jobs(ctx context.Context, names []string, requireKey bool) ([]publish.Job, error) {
	jobs := make([]publish.Job, 0, len(names))
	for _, name := range names {
		pub, err := r.cfg.GetPublication(name)
		if err != nil {
			return nil, err
		}

		apiKey, err := config.ResolveAPIKey(name, pub, r.getenv)
		if err != nil {
			if requireKey {
				return nil, err
			}
			r.stderr.Warn("no api key configured", "publication", name, "env", config.APIKeyEnvVar(name))
		}

		description, err := r.Description(ctx, pub)
		if err != nil {
			return nil, fmt.Errorf("publication %s: %w", name, err)
		}

		jobs = append(jobs, publish.Job{
			Name:  name,
			Input: r.cfg.PublicationInput(pub, apiKey, description),
		})
	}
	return jobs, nil
}

// Pages builds page edits for every page of the named publications.
func (r *Runner) Pages(names []string) ([]publish.PageSyncInput, error) {
	var pages []publish.PageSyncInput
	for _, name := range names {
		pub, err := r.cfg.GetPublication(name)
		if err != nil {
			return nil, err
		}
		if len(pub.Pages) == 0 {
			continue
		}

		apiKey, err := config.ResolveAPIKey(name, pub, r.getenv)
		if err != nil {
			return nil, err
		}

		for _, page := range pub.Pages {
			content, err := r.cfg.PageContent(page)
			if err != nil {
				return nil, fmt.Errorf("publication %s: %w", name, err)
			}
			pages = append(pages, publish.PageSyncInput{
				Endpoint: r.cfg.Endpoint(pub),
				APIKey:   apiKey,
				Slug:     pub.Slug,
				Page:     publish.Page{Name: page.Name, Content: content},
			})
		}
	}
	return pages, nil
}
