// Package cli provides the hangarpub command-line interface.
// It loads the YAML publication file and drives uploads, page syncs and history.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/hangarpub/internal/auth"
	"github.com/clean-dependency-project/hangarpub/internal/config"
	gh "github.com/clean-dependency-project/hangarpub/internal/github"
	"github.com/clean-dependency-project/hangarpub/internal/hangar"
	"github.com/clean-dependency-project/hangarpub/internal/logger"
	"github.com/clean-dependency-project/hangarpub/internal/manifest"
	"github.com/clean-dependency-project/hangarpub/internal/publish"
	"github.com/clean-dependency-project/hangarpub/internal/storage"
	"github.com/clean-dependency-project/hangarpub/internal/transport"
	"github.com/clean-dependency-project/hangarpub/internal/version"
)

// PublishSummary is one publication's outcome in JSON output.
type PublishSummary struct {
	Publication string   `json:"publication"`
	Owner       string   `json:"owner"`
	Slug        string   `json:"slug"`
	Version     string   `json:"version"`
	URL         string   `json:"url,omitempty"`
	Files       []string `json:"files"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
}

// DryRunResult is the manifest a publish would send, without sending it.
type DryRunResult struct {
	Publication string          `json:"publication"`
	Endpoint    string          `json:"endpoint"`
	Manifest    json.RawMessage `json:"manifest"`
	Files       []string        `json:"files"`
}

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:     "hangarpub",
		Usage:    "Publish plugin versions to a Hangar registry",
		Version:  "1.0.0",
		Compiled: time.Now(),
		Authors: []*cli.Author{
			{
				Name:  "Clean Dependency Project",
				Email: "info@example.com",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "hangarpub.yaml",
				Usage:   "path to publication configuration file",
				EnvVars: []string{"HANGARPUB_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"HANGARPUB_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "log format (json, text)",
				EnvVars: []string{"HANGARPUB_LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "publish",
				Usage: "Upload configured publications to Hangar",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "publication",
						Aliases: []string{"p"},
						Usage:   "publication name. If not specified, publishes all configured publications",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "print the version manifest and files without uploading",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Value: publish.DefaultConcurrency,
						Usage: "number of concurrent uploads",
					},
					&cli.StringFlag{
						Name:  "output",
						Value: "text",
						Usage: "output format (text, json)",
					},
				},
				Action: publishCommand,
			},
			{
				Name:  "sync-pages",
				Usage: "Replace project pages with their configured content",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "publication",
						Aliases: []string{"p"},
						Usage:   "publication name. If not specified, syncs pages of all publications",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Value: publish.DefaultConcurrency,
						Usage: "number of concurrent page edits",
					},
				},
				Action: syncPagesCommand,
			},
			{
				Name:  "history",
				Usage: "List recorded publishes, newest version first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Usage:   "path to SQLite database file (defaults to storage.database_path)",
						EnvVars: []string{"HANGARPUB_DB"},
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "project owner",
					},
					&cli.StringFlag{
						Name:  "slug",
						Usage: "project slug",
					},
					&cli.StringFlag{
						Name:  "output",
						Value: "text",
						Usage: "output format (text, json)",
					},
				},
				Action: historyCommand,
			},
			{
				Name:  "init",
				Usage: "Write a starter configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing file",
					},
				},
				Action: initCommand,
			},
		},
	}
}

// session holds the collaborators one command run needs.
type session struct {
	cfg       *config.Config
	runner    *Runner
	publisher *publish.Publisher
	db        *storage.DB
	stop      func()
	stderr    *slog.Logger
}

// loggers creates the stdout/stderr logger pair from global flags. Invalid
// flag values fall back to info level and JSON output.
func loggers(c *cli.Context) (*slog.Logger, *slog.Logger) {
	l, err := logger.New(c.String("log-level"), c.String("log-format"), os.Stderr)
	if err != nil {
		return NewLoggersWithOutputFormat(ParseLogLevelOrDefault(c.String("log-level")), c.String("log-format"))
	}
	return l, l
}

// initDB opens the history database when one is configured.
func initDB(path string) (*storage.DB, error) {
	if path == "" {
		return nil, nil
	}
	return storage.InitDB(storage.Config{
		DatabasePath: path,
		LogLevel:     "silent", // Database logs are verbose, suppress them
	})
}

// openSession loads the configuration and wires transport, registry client,
// token store, manifest builder and publisher. withHistory opens the history
// database when one is configured.
func openSession(c *cli.Context, withHistory bool, stdout, stderr *slog.Logger) (*session, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	httpClient, stop := transport.NewHTTPClient(transport.Options{
		Timeout: cfg.Config.GetRequestTimeout(),
	})

	registry := hangar.NewClient(hangar.Config{
		UserAgent:  cfg.Config.UserAgent,
		Timeout:    cfg.Config.GetRequestTimeout(),
		HTTPClient: httpClient,
		Logger:     stdout,
	})
	tokens := auth.NewStore(registry, auth.WithLogger(stdout))

	s := &session{cfg: cfg, stop: stop, stderr: stderr}

	var history publish.HistoryRecorder
	if withHistory {
		db, err := initDB(cfg.Config.Storage.DatabasePath)
		if err != nil {
			stop()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if db != nil {
			s.db = db
			history = db
		}
	}

	s.publisher, err = publish.NewPublisher(manifest.NewBuilder(nil), tokens, registry, history, stdout, stderr)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.runner, err = NewRunner(cfg, os.Getenv, githubChangelogs(httpClient), stdout, stderr)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database and stops the DNS refresh loop.
func (s *session) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			// Log close error but don't fail - we're in cleanup
			s.stderr.Warn("failed to close database", "error", err)
		}
	}
	s.stop()
}

// githubChangelogs creates release-notes clients authenticated with
// GITHUB_TOKEN when it is set.
func githubChangelogs(httpClient *http.Client) ChangelogFactory {
	return func(repository string) (ChangelogFetcher, error) {
		client, err := gh.NewClient(os.Getenv("GITHUB_TOKEN"), repository, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// publishCommand implements the publish command.
func publishCommand(c *cli.Context) error {
	stdout, stderr := loggers(c)
	dryRun := c.Bool("dry-run")
	outputFormat := c.String("output")

	s, err := openSession(c, !dryRun, stdout, stderr)
	if err != nil {
		stderr.Error("failed to initialize", "error", err)
		return err
	}
	defer s.Close()

	names, err := s.runner.Select(c.String("publication"))
	if err != nil {
		return err
	}

	jobs, err := s.runner.Jobs(c.Context, names, !dryRun)
	if err != nil {
		stderr.Error("failed to prepare publications", "error", err)
		return err
	}

	if dryRun {
		return writeDryRun(c.App.Writer, s.publisher, jobs, outputFormat)
	}

	stdout.Info("starting publish", "publications", names, "concurrency", c.Int("concurrency"))

	outcomes, publishErr := s.publisher.PublishAll(c.Context, jobs, c.Int("concurrency"))

	succeeded := 0
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}
	stdout.Info("publish summary",
		"total", len(outcomes),
		"successful", succeeded,
		"failed", len(outcomes)-succeeded)

	if outputFormat == "json" {
		if err := writeJSON(c.App.Writer, publishSummaries(jobs, outcomes)); err != nil {
			return err
		}
	}

	if publishErr != nil {
		return fmt.Errorf("publish failed: %w", publishErr)
	}
	return nil
}

func publishSummaries(jobs []publish.Job, outcomes []publish.Outcome) []PublishSummary {
	summaries := make([]PublishSummary, 0, len(outcomes))
	for i, o := range outcomes {
		in := jobs[i].Input
		summary := PublishSummary{
			Publication: o.Name,
			Owner:       in.Owner,
			Slug:        in.Slug,
			Version:     in.Version,
			Files:       []string{},
			Success:     o.Err == nil,
		}
		if o.Err != nil {
			summary.Error = o.Err.Error()
		} else {
			summary.URL = o.Result.URL
			summary.Files = o.Result.Files
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// writeDryRun prints each publication's manifest. Text output is one compact
// manifest per line; JSON output wraps them with endpoint and files.
func writeDryRun(w io.Writer, p *publish.Publisher, jobs []publish.Job, outputFormat string) error {
	results := make([]DryRunResult, 0, len(jobs))
	for _, job := range jobs {
		plan, err := p.Plan(job.Input)
		if err != nil {
			return fmt.Errorf("publication %s: %w", job.Name, err)
		}
		files := plan.Files
		if files == nil {
			files = []string{}
		}
		results = append(results, DryRunResult{
			Publication: job.Name,
			Endpoint:    job.Input.Endpoint,
			Manifest:    plan.ManifestJSON,
			Files:       files,
		})
	}

	if outputFormat == "json" {
		return writeJSON(w, results)
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s\n", r.Manifest); err != nil {
			return err
		}
	}
	return nil
}

// syncPagesCommand implements the sync-pages command.
func syncPagesCommand(c *cli.Context) error {
	stdout, stderr := loggers(c)

	s, err := openSession(c, false, stdout, stderr)
	if err != nil {
		stderr.Error("failed to initialize", "error", err)
		return err
	}
	defer s.Close()

	names, err := s.runner.Select(c.String("publication"))
	if err != nil {
		return err
	}
	pages, err := s.runner.Pages(names)
	if err != nil {
		stderr.Error("failed to prepare pages", "error", err)
		return err
	}
	if len(pages) == 0 {
		stdout.Info("no pages configured", "publications", names)
		return nil
	}

	if err := s.publisher.SyncPages(c.Context, pages, c.Int("concurrency")); err != nil {
		return fmt.Errorf("page sync failed: %w", err)
	}
	stdout.Info("pages synced", "count", len(pages))
	return nil
}

// historyCommand implements the history command.
func historyCommand(c *cli.Context) error {
	_, stderr := loggers(c)

	dbPath := c.String("db")
	if dbPath == "" {
		cfg, err := config.LoadConfig(c.String("config"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dbPath = cfg.Config.Storage.DatabasePath
		if dbPath == "" {
			return fmt.Errorf("database path not specified and not found in config")
		}
	}

	db, err := initDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			stderr.Error("failed to close database", "error", closeErr)
		}
	}()

	records, err := listHistory(db, c.String("owner"), c.String("slug"))
	if err != nil {
		return err
	}
	return writeHistory(c.App.Writer, records, c.String("output"))
}

// listHistory returns records for one project, or all of them, ordered
// newest version first.
func listHistory(store HistoryStore, owner, slug string) ([]*storage.PublishRecord, error) {
	var (
		records []*storage.PublishRecord
		err     error
	)
	switch {
	case owner != "" && slug != "":
		records, err = store.ListByProject(owner, slug)
	case owner == "" && slug == "":
		records, err = store.ListAll()
	default:
		return nil, errors.New("--owner and --slug must be given together")
	}
	if err != nil {
		return nil, err
	}

	version.SortDescending(records, func(r *storage.PublishRecord) string { return r.Version })
	return records, nil
}

func writeHistory(w io.Writer, records []*storage.PublishRecord, outputFormat string) error {
	if outputFormat == "json" {
		if records == nil {
			records = []*storage.PublishRecord{}
		}
		return writeJSON(w, records)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tVERSION\tCHANNEL\tFILES\tPUBLISHED\tURL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s/%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Owner, r.Slug, r.Version, r.Channel, r.FileCount,
			r.PublishedAt.UTC().Format(time.RFC3339), r.URL)
	}
	return tw.Flush()
}

// initCommand implements the init command.
func initCommand(c *cli.Context) error {
	stdout, _ := loggers(c)
	path := c.String("config")

	if !c.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return err
	}
	stdout.Info("wrote starter configuration", "path", path)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
