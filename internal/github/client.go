// Package github reads release notes from GitHub to use as version changelogs.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
)

// Sentinel errors for GitHub operations.
var (
	ErrInvalidRepo     = errors.New("repository must be in format 'owner/repo'")
	ErrEmptyTag        = errors.New("release tag cannot be empty")
	ErrReleaseNotFound = errors.New("release not found")
)

// Client wraps the GitHub API client for release lookups.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// NewClient creates a GitHub API client for the specified repository.
// An empty token gives an anonymous client, enough for public repositories.
// Repository must be in the format "owner/repo".
func NewClient(token, repository string, httpClient *http.Client) (*Client, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// GetRelease retrieves an existing release by tag name.
// Returns ErrReleaseNotFound if the release doesn't exist.
func (c *Client) GetRelease(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	if tag == "" {
		return nil, ErrEmptyTag
	}

	if c.client == nil || c.owner == "" || c.repo == "" {
		return nil, fmt.Errorf("client not initialized: use NewClient to create instances")
	}

	release, resp, err := c.client.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s@%s", ErrReleaseNotFound, c.owner, c.repo, tag)
		}
		return nil, fmt.Errorf("failed to get release %s: %w", tag, err)
	}

	return release, nil
}

// ReleaseNotes returns the body of the release tagged tag.
func (c *Client) ReleaseNotes(ctx context.Context, tag string) (string, error) {
	release, err := c.GetRelease(ctx, tag)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(release.GetBody()), nil
}

// parseRepository splits a repository string into owner and repo.
// Returns an error if the format is invalid.
func parseRepository(repository string) (owner, repo string, err error) {
	if repository == "" {
		return "", "", ErrInvalidRepo
	}

	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner or repo is empty", ErrInvalidRepo)
	}

	return owner, repo, nil
}
