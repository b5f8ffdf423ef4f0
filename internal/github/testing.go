package github

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
)

// NewTestClient returns a client whose API calls go to baseURL, typically an
// httptest server, instead of api.github.com.
func NewTestClient(httpClient *http.Client, baseURL, repository string) (*Client, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	apiURL, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	gh := github.NewClient(httpClient)
	gh.BaseURL = apiURL

	return &Client{client: gh, owner: owner, repo: repo}, nil
}
