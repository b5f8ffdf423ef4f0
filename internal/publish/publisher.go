// Package publish orchestrates a version upload: build the manifest, obtain a
// token, send the multipart request and record the result.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clean-dependency-project/hangarpub/internal/auth"
	"github.com/clean-dependency-project/hangarpub/internal/config"
	"github.com/clean-dependency-project/hangarpub/internal/hangar"
	"github.com/clean-dependency-project/hangarpub/internal/manifest"
	"github.com/clean-dependency-project/hangarpub/internal/storage"
)

// Sentinel errors for publisher construction
var (
	ErrBuilderRequired  = errors.New("manifest builder is required")
	ErrTokensRequired   = errors.New("token source is required")
	ErrRegistryRequired = errors.New("registry client is required")
)

// ManifestBuilder turns publication input into a version manifest.
type ManifestBuilder interface {
	Build(input manifest.PublicationInput) (*manifest.VersionManifest, error)
}

// TokenSource hands out bearer tokens for a credential pair.
type TokenSource interface {
	Token(ctx context.Context, endpoint, apiKey string) (auth.Token, error)
}

// Registry is the subset of the Hangar API the publisher drives.
type Registry interface {
	UploadVersion(ctx context.Context, endpoint string, upload hangar.UploadRequest) (hangar.UploadResult, error)
	EditPage(ctx context.Context, endpoint string, edit hangar.PageEdit) error
}

// HistoryRecorder stores successful publishes.
type HistoryRecorder interface {
	RecordPublish(record *storage.PublishRecord) error
}

// Plan is a built manifest with its wire form and the files it attaches.
type Plan struct {
	Manifest     *manifest.VersionManifest
	ManifestJSON []byte
	Files        []string
}

// Result describes a completed upload.
type Result struct {
	Publication string
	Owner       string
	Slug        string
	Version     string
	URL         string
	Files       []string
}

// Page is one project page's content.
type Page struct {
	Name    string
	Content string
}

// PageSyncInput addresses a page edit.
type PageSyncInput struct {
	Endpoint string
	APIKey   string
	Slug     string
	Page     Page
}

// Publisher uploads versions and syncs pages against a Hangar registry.
type Publisher struct {
	builder  ManifestBuilder
	tokens   TokenSource
	registry Registry
	history  HistoryRecorder
	now      func() time.Time
	stdout   *slog.Logger
	stderr   *slog.Logger
}

// NewPublisher creates a publisher. history may be nil to skip recording.
func NewPublisher(builder ManifestBuilder, tokens TokenSource, registry Registry, history HistoryRecorder, stdout, stderr *slog.Logger) (*Publisher, error) {
	if builder == nil {
		return nil, ErrBuilderRequired
	}
	if tokens == nil {
		return nil, ErrTokensRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	if stdout == nil {
		stdout = discard
	}
	if stderr == nil {
		stderr = discard
	}

	return &Publisher{
		builder:  builder,
		tokens:   tokens,
		registry: registry,
		history:  history,
		now:      time.Now,
		stdout:   stdout,
		stderr:   stderr,
	}, nil
}

// Plan validates input and builds the manifest without touching the network.
func (p *Publisher) Plan(input manifest.PublicationInput) (*Plan, error) {
	m, err := p.builder.Build(input)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	return &Plan{
		Manifest:     m,
		ManifestJSON: data,
		Files:        m.LocalFiles(),
	}, nil
}

// Publish uploads one version. Validation failures happen before any
// network call. A failed history write is logged and does not fail the publish.
func (p *Publisher) Publish(ctx context.Context, name string, input manifest.PublicationInput) (*Result, error) {
	plan, err := p.Plan(input)
	if err != nil {
		return nil, fmt.Errorf("publication %s: %w", name, err)
	}

	token, err := p.tokens.Token(ctx, input.Endpoint, input.APIKey)
	if err != nil {
		return nil, fmt.Errorf("publication %s: %w", name, err)
	}

	p.stdout.Info("uploading version",
		"publication", name,
		"project", input.Owner+"/"+input.Slug,
		"version", input.Version,
		"channel", input.Channel,
		"files", len(plan.Files))

	uploaded, err := p.registry.UploadVersion(ctx, input.Endpoint, hangar.UploadRequest{
		Owner:    input.Owner,
		Slug:     input.Slug,
		Token:    token.Value,
		Manifest: plan.ManifestJSON,
		Files:    plan.Files,
	})
	if err != nil {
		return nil, fmt.Errorf("publication %s: %w", name, err)
	}

	p.stdout.Info("version published",
		"publication", name,
		"version", input.Version,
		"url", uploaded.URL)

	result := &Result{
		Publication: name,
		Owner:       input.Owner,
		Slug:        input.Slug,
		Version:     input.Version,
		URL:         uploaded.URL,
		Files:       plan.Files,
	}
	p.record(name, input, plan, result)
	return result, nil
}

func (p *Publisher) record(name string, input manifest.PublicationInput, plan *Plan, result *Result) {
	if p.history == nil {
		return
	}
	err := p.history.RecordPublish(&storage.PublishRecord{
		Publication: name,
		Owner:       input.Owner,
		Slug:        input.Slug,
		Version:     input.Version,
		Channel:     input.Channel,
		Endpoint:    input.Endpoint,
		URL:         result.URL,
		FileCount:   len(plan.Files),
		Manifest:    string(plan.ManifestJSON),
		PublishedAt: p.now().UTC(),
	})
	if err != nil {
		p.stderr.Warn("failed to record publish history",
			"publication", name,
			"version", input.Version,
			"error", err)
	}
}

// SyncPage replaces one project page. The resource page is addressed by the
// empty path.
func (p *Publisher) SyncPage(ctx context.Context, in PageSyncInput) error {
	token, err := p.tokens.Token(ctx, in.Endpoint, in.APIKey)
	if err != nil {
		return err
	}

	if err := p.registry.EditPage(ctx, in.Endpoint, hangar.PageEdit{
		Slug:    in.Slug,
		Token:   token.Value,
		Path:    config.PagePath(in.Page.Name),
		Content: in.Page.Content,
	}); err != nil {
		return fmt.Errorf("page %s: %w", in.Page.Name, err)
	}

	p.stdout.Info("page synced", "slug", in.Slug, "page", in.Page.Name)
	return nil
}
