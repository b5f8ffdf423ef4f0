// Package hangar provides the HTTP client for the Hangar plugin registry API:
// token authentication, multipart version uploads and project page edits.
package hangar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clean-dependency-project/hangarpub/internal/auth"
)

const (
	// DefaultEndpoint is the public Hangar API base URL.
	DefaultEndpoint = "https://hangar.papermc.io/api/v1/"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent is the default User-Agent header
	DefaultUserAgent = "hangarpub/1.0"

	// Multipart field names expected by the upload endpoint.
	FieldVersionUpload = "versionUpload"
	FieldFiles         = "files"

	maxResponseBytes = 1 << 20
)

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the registry client
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	HTTPClient HTTPClient
	Logger     *slog.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Client talks to a Hangar API endpoint. The endpoint is passed per call so one
// client can serve several publications.
type Client struct {
	httpClient HTTPClient
	userAgent  string
	logger     *slog.Logger
}

// UploadRequest carries everything one version upload needs.
type UploadRequest struct {
	Owner string
	Slug  string
	Token string
	// Manifest is the serialized version manifest sent as the versionUpload part.
	Manifest []byte
	// Files are attached as "files" parts in order.
	Files []string
}

// PageEdit replaces the content of one project page.
type PageEdit struct {
	Slug    string
	Token   string
	Path    string
	Content string
}

// NewClient creates a new registry client
func NewClient(config Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Timeout: config.Timeout,
		}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		httpClient: config.HTTPClient,
		userAgent:  config.UserAgent,
		logger:     config.Logger,
	}
}

// NormalizeEndpoint returns endpoint with exactly one trailing slash,
// or DefaultEndpoint when it is blank.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimRight(endpoint, "/") + "/"
}

// Authenticate exchanges an API key for a short-lived bearer token.
func (c *Client) Authenticate(ctx context.Context, endpoint, apiKey string) (auth.Grant, error) {
	base := endpoint + "authenticate"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"?apiKey="+url.QueryEscape(apiKey), nil)
	if err != nil {
		return auth.Grant{}, fmt.Errorf("failed to create authenticate request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("requesting api token", "url", base)

	status, reason, body, err := c.do(req)
	if err != nil {
		// url.Error would repeat the full URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return auth.Grant{}, &NetworkError{Op: OpAuthenticate, URL: base, Err: err}
	}

	return ParseAuthResponse(status, reason, body)
}

// UploadVersion sends the manifest and artifact files as one multipart request.
// All files are opened before the request starts and closed before it returns.
func (c *Client) UploadVersion(ctx context.Context, endpoint string, upload UploadRequest) (UploadResult, error) {
	target := endpoint + "projects/" + url.PathEscape(upload.Owner) + "/" + url.PathEscape(upload.Slug) + "/upload"

	files, err := openAll(upload.Files)
	if err != nil {
		return UploadResult{}, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	size, err := uploadBodySize(mw.Boundary(), upload.Manifest, files)
	if err != nil {
		closeAll(files)
		_ = pr.Close()
		return UploadResult{}, err
	}

	done := make(chan error, 1)
	go func() {
		err := writeUploadBody(mw, upload.Manifest, files, copyFile)
		closeAll(files)
		_ = pw.CloseWithError(err)
		done <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		_ = pr.Close()
		<-done
		return UploadResult{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = size
	c.setHeaders(req)
	req.Header.Set("Authorization", upload.Token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug("uploading version",
		"url", target,
		"manifest_bytes", len(upload.Manifest),
		"content_length", size,
		"files", len(files))

	status, reason, body, err := c.do(req)
	_ = pr.Close()
	writeErr := <-done

	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		return UploadResult{}, fmt.Errorf("failed to write upload body: %w", writeErr)
	}
	if err != nil {
		return UploadResult{}, &NetworkError{Op: OpUpload, URL: target, Err: err}
	}

	return ParseUploadResponse(status, reason, body)
}

// EditPage replaces a project page. An empty path addresses the main resource page.
func (c *Client) EditPage(ctx context.Context, endpoint string, edit PageEdit) error {
	target := endpoint + "pages/edit/" + url.PathEscape(edit.Slug)

	payload, err := json.Marshal(struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}{Path: edit.Path, Content: edit.Content})
	if err != nil {
		return fmt.Errorf("failed to encode page edit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create page edit request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", edit.Token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("editing page", "url", target, "path", edit.Path)

	status, reason, body, err := c.do(req)
	if err != nil {
		return &NetworkError{Op: OpEditPage, URL: target, Err: err}
	}
	return ParseEditPageResponse(status, reason, body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// do executes req and reads a bounded response body. The body is always closed.
func (c *Client) do(req *http.Request) (status int, reason string, body []byte, err error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("registry response", "method", req.Method, "status", resp.StatusCode)
	return resp.StatusCode, reasonPhrase(resp), body, nil
}

// writeUploadBody writes the versionUpload part followed by one files part per
// artifact. fill writes an artifact's content into its part and returns the
// number of content bytes.
func writeUploadBody(mw *multipart.Writer, manifest []byte, files []*os.File, fill func(io.Writer, *os.File) (int64, error)) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, FieldVersionUpload))
	h.Set("Content-Type", "application/json")

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(manifest); err != nil {
		return err
	}

	for _, f := range files {
		part, err := mw.CreateFormFile(FieldFiles, filepath.Base(f.Name()))
		if err != nil {
			return err
		}
		if _, err := fill(part, f); err != nil {
			return fmt.Errorf("copy %s: %w", f.Name(), err)
		}
	}

	return mw.Close()
}

func copyFile(w io.Writer, f *os.File) (int64, error) {
	return io.Copy(w, f)
}

// uploadBodySize returns the exact length of the body writeUploadBody produces
// with boundary, counting artifact sizes from Stat instead of reading them.
func uploadBodySize(boundary string, manifest []byte, files []*os.File) (int64, error) {
	var framing countingWriter
	mw := multipart.NewWriter(&framing)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}

	var content int64
	statSize := func(_ io.Writer, f *os.File) (int64, error) {
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		content += info.Size()
		return info.Size(), nil
	}
	if err := writeUploadBody(mw, manifest, files, statSize); err != nil {
		return 0, fmt.Errorf("failed to size upload body: %w", err)
	}
	return int64(framing) + content, nil
}

type countingWriter int64

func (c *countingWriter) Write(p []byte) (int, error) {
	*c += countingWriter(len(p))
	return len(p), nil
}

func openAll(paths []string) ([]*os.File, error) {
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll(files)
			return nil, fmt.Errorf("failed to open artifact %s: %w", p, err)
		}
		files = append(files, f)
	}
	return files, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
