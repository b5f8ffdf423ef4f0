package hangar

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clean-dependency-project/hangarpub/internal/auth"
)

// Operation names used in errors and logs.
const (
	OpAuthenticate = "authenticate"
	OpUpload       = "upload"
	OpEditPage     = "edit page"
)

type errorResponse struct {
	FieldErrors []struct {
		ErrorMsg string `json:"errorMsg"`
	} `json:"fieldErrors"`
	Message *string `json:"message"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadResult describes a successful version upload.
type UploadResult struct {
	// URL is the published version location, empty when the registry sent none.
	URL string
}

// ExtractErrorMessage turns a registry error body into a single message.
// Field errors win over the top-level message. Anything unusable yields fallback.
func ExtractErrorMessage(body []byte, fallback string) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback
	}

	switch len(parsed.FieldErrors) {
	case 0:
	case 1:
		return parsed.FieldErrors[0].ErrorMsg
	default:
		parts := make([]string, 0, len(parsed.FieldErrors))
		for i, fe := range parsed.FieldErrors {
			parts = append(parts, fmt.Sprintf("(%d) %s", i+1, fe.ErrorMsg))
		}
		return strings.Join(parts, " ")
	}

	if parsed.Message != nil {
		return *parsed.Message
	}
	return fallback
}

// ParseAuthResponse classifies an authenticate response.
func ParseAuthResponse(status int, reason string, body []byte) (auth.Grant, error) {
	if status != http.StatusOK {
		return auth.Grant{}, AuthError{StatusCode: status, Reason: reason}
	}

	var parsed authResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return auth.Grant{}, fmt.Errorf("%w: decode authenticate response: %v", ErrMalformedResponse, err)
	}
	if parsed.Token == "" {
		return auth.Grant{}, fmt.Errorf("%w: authenticate response has no token", ErrMalformedResponse)
	}

	return auth.Grant{
		Token:     parsed.Token,
		ExpiresIn: time.Duration(parsed.ExpiresIn) * time.Millisecond,
	}, nil
}

// ParseUploadResponse classifies an upload response. A 200 without a
// readable url is still a success.
func ParseUploadResponse(status int, reason string, body []byte) (UploadResult, error) {
	if status != http.StatusOK {
		return UploadResult{}, PublishError{
			Op:         OpUpload,
			StatusCode: status,
			Message:    ExtractErrorMessage(body, reason),
		}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return UploadResult{}, nil
	}
	return UploadResult{URL: parsed.URL}, nil
}

// ParseEditPageResponse classifies a page edit response.
func ParseEditPageResponse(status int, reason string, body []byte) error {
	if status == http.StatusOK {
		return nil
	}
	return PublishError{
		Op:         OpEditPage,
		StatusCode: status,
		Message:    ExtractErrorMessage(body, reason),
	}
}

// reasonPhrase returns the status text without its numeric code.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		return http.StatusText(resp.StatusCode)
	}
	return reason
}
