// Package cli provides command-line interface components with testable abstractions.
package cli

import (
	"context"

	"github.com/clean-dependency-project/hangarpub/internal/storage"
)

// ChangelogFetcher abstracts release-notes lookups for testing.
type ChangelogFetcher interface {
	// ReleaseNotes returns the body of the release tagged tag.
	ReleaseNotes(ctx context.Context, tag string) (string, error)
}

// ChangelogFactory creates a fetcher for an "owner/repo" repository.
type ChangelogFactory func(repository string) (ChangelogFetcher, error)

// HistoryStore abstracts publish history queries for testing.
type HistoryStore interface {
	// ListByProject returns every record of owner/slug, newest first.
	ListByProject(owner, slug string) ([]*storage.PublishRecord, error)

	// ListAll returns every record, newest first.
	ListAll() ([]*storage.PublishRecord, error)
}
