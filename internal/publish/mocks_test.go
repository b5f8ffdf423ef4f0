package publish

import (
	"context"
	"sync"

	"github.com/clean-dependency-project/hangarpub/internal/auth"
	"github.com/clean-dependency-project/hangarpub/internal/hangar"
	"github.com/clean-dependency-project/hangarpub/internal/manifest"
	"github.com/clean-dependency-project/hangarpub/internal/storage"
)

// mockBuilder implements ManifestBuilder for testing.
type mockBuilder struct {
	buildFn func(input manifest.PublicationInput) (*manifest.VersionManifest, error)
}

// Build implements ManifestBuilder.
func (m *mockBuilder) Build(input manifest.PublicationInput) (*manifest.VersionManifest, error) {
	if m.buildFn != nil {
		return m.buildFn(input)
	}
	return &manifest.VersionManifest{
		Version:              input.Version,
		PluginDependencies:   map[string][]manifest.Dependency{},
		PlatformDependencies: map[string][]string{},
		Files: []manifest.FileGroup{
			{Platforms: []string{"PAPER"}, Source: manifest.LocalFile{Path: "/tmp/widget.jar", Key: "/tmp/widget.jar"}},
		},
		Channel: input.Channel,
	}, nil
}

// mockTokenSource implements TokenSource for testing.
type mockTokenSource struct {
	tokenFn func(ctx context.Context, endpoint, apiKey string) (auth.Token, error)
}

// Token implements TokenSource.
func (m *mockTokenSource) Token(ctx context.Context, endpoint, apiKey string) (auth.Token, error) {
	if m.tokenFn != nil {
		return m.tokenFn(ctx, endpoint, apiKey)
	}
	return auth.Token{Value: "token-" + apiKey}, nil
}

// mockRegistry implements Registry for testing.
type mockRegistry struct {
	mu       sync.Mutex
	uploads  []hangar.UploadRequest
	edits    []hangar.PageEdit
	uploadFn func(ctx context.Context, endpoint string, upload hangar.UploadRequest) (hangar.UploadResult, error)
	editFn   func(ctx context.Context, endpoint string, edit hangar.PageEdit) error
}

// UploadVersion implements Registry.
func (m *mockRegistry) UploadVersion(ctx context.Context, endpoint string, upload hangar.UploadRequest) (hangar.UploadResult, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, upload)
	m.mu.Unlock()
	if m.uploadFn != nil {
		return m.uploadFn(ctx, endpoint, upload)
	}
	return hangar.UploadResult{URL: "https://hangar.test/" + upload.Owner + "/" + upload.Slug}, nil
}

// EditPage implements Registry.
func (m *mockRegistry) EditPage(ctx context.Context, endpoint string, edit hangar.PageEdit) error {
	m.mu.Lock()
	m.edits = append(m.edits, edit)
	m.mu.Unlock()
	if m.editFn != nil {
		return m.editFn(ctx, endpoint, edit)
	}
	return nil
}

// mockHistory implements HistoryRecorder for testing.
type mockHistory struct {
	mu       sync.Mutex
	records  []*storage.PublishRecord
	recordFn func(record *storage.PublishRecord) error
}

// RecordPublish implements HistoryRecorder.
func (m *mockHistory) RecordPublish(record *storage.PublishRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(record)
	}
	m.records = append(m.records, record)
	return nil
}
