package hangar

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for registry operations.
var (
	// ErrInvalidAPIKey indicates the authenticate endpoint rejected the API key.
	ErrInvalidAPIKey = errors.New("invalid api key")

	// ErrNetwork indicates the registry could not be reached.
	ErrNetwork = errors.New("network error")

	// ErrRejected indicates the registry answered with a non-success status.
	ErrRejected = errors.New("request rejected by registry")

	// ErrMalformedResponse indicates a success response whose body could not be used.
	ErrMalformedResponse = errors.New("malformed registry response")
)

// AuthError is returned when the authenticate call does not yield a token.
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e AuthError) Error() string {
	if e.InvalidAPIKey() {
		return "authentication failed: invalid api key"
	}
	return fmt.Sprintf("authentication failed: %d %s", e.StatusCode, e.Reason)
}

// InvalidAPIKey reports whether the registry rejected the key itself.
func (e AuthError) InvalidAPIKey() bool {
	return e.StatusCode == http.StatusBadRequest
}

func (e AuthError) Is(target error) bool {
	return target == ErrInvalidAPIKey && e.InvalidAPIKey()
}

// NetworkError wraps a transport failure. URL never carries query parameters.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// PublishError is returned when the registry rejects an upload or page edit.
type PublishError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e PublishError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e PublishError) Is(target error) bool {
	return target == ErrRejected
}
