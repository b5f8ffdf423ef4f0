package cli

import (
	"context"

	"github.com/clean-dependency-project/hangarpub/internal/storage"
)

// mockChangelogFetcher implements ChangelogFetcher for testing.
type mockChangelogFetcher struct {
	releaseNotesFn func(ctx context.Context, tag string) (string, error)
}

// ReleaseNotes implements ChangelogFetcher.
func (m *mockChangelogFetcher) ReleaseNotes(ctx context.Context, tag string) (string, error) {
	if m.releaseNotesFn != nil {
		return m.releaseNotesFn(ctx, tag)
	}
	return "notes for " + tag, nil
}

// mockHistoryStore implements HistoryStore for testing.
type mockHistoryStore struct {
	listByProjectFn func(owner, slug string) ([]*storage.PublishRecord, error)
	listAllFn       func() ([]*storage.PublishRecord, error)
}

// ListByProject implements HistoryStore.
func (m *mockHistoryStore) ListByProject(owner, slug string) ([]*storage.PublishRecord, error) {
	if m.listByProjectFn != nil {
		return m.listByProjectFn(owner, slug)
	}
	return nil, nil
}

// ListAll implements HistoryStore.
func (m *mockHistoryStore) ListAll() ([]*storage.PublishRecord, error) {
	if m.listAllFn != nil {
		return m.listAllFn()
	}
	return nil, nil
}
