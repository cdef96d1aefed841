package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	devhttp "github.com/randalmurphal/storyflow/http"
)

// Configuration errors.
var (
	ErrConfigURLRequired       = errors.New("jira url is required")
	ErrConfigAuthTypeRequired  = errors.New("jira auth type is required")
	ErrConfigAuthTypeInvalid   = errors.New("jira auth type must be api_token, oauth2, basic, or pat")
	ErrConfigAPITokenAuth      = errors.New("api_token auth requires email and token")
	ErrConfigBasicAuth         = errors.New("basic auth requires username and password")
	ErrConfigPATAuth           = errors.New("pat auth requires token")
	ErrConfigOAuth2Auth        = errors.New("oauth2 auth requires client_id and client_secret")
	ErrConfigOAuth2Token       = errors.New("oauth2 auth requires an access_token or refresh_token")
	ErrConfigAPIVersionInvalid = errors.New("api_version must be auto, v2, or v3")
)

// Issue errors.
var (
	ErrProjectNotFound  = errors.New("jira project not found")
	ErrProjectRequired  = errors.New("project key is required")
	ErrSummaryRequired  = errors.New("issue summary is required")
	ErrIssueTypeMissing = errors.New("issue type is required")
	ErrIssueKeyInvalid  = errors.New("invalid issue key format")
)

// ADF errors.
var (
	ErrADFVersionOnly = errors.New("ADF version must be 1")
	ErrADFTypeInvalid = errors.New("ADF root type must be 'doc'")
)

// APIError represents an error response from the Jira API.
type APIError struct {
	StatusCode    int               `json:"-"`
	ErrorMessages []string          `json:"errorMessages,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	Endpoint      string            `json:"-"`
	RequestID     string            `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.ErrorMessages) > 0 {
		return fmt.Sprintf("jira api error (%d): %s", e.StatusCode, e.ErrorMessages[0])
	}
	if len(e.Errors) > 0 {
		// Field errors come back as a map; pick the first field by name so
		// the message is stable.
		fields := make([]string, 0, len(e.Errors))
		for field := range e.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return fmt.Sprintf("jira api error (%d): %s: %s", e.StatusCode, fields[0], e.Errors[fields[0]])
	}
	if e.RequestID != "" {
		return fmt.Sprintf("jira api error (%d) at %s [%s]", e.StatusCode, e.Endpoint, e.RequestID)
	}
	return fmt.Sprintf("jira api error (%d)", e.StatusCode)
}

// Unwrap returns the underlying sentinel error based on status code.
func (e *APIError) Unwrap() error {
	return devhttp.StatusError(e.StatusCode)
}

// parseAPIError parses an error response from the Jira API.
func parseAPIError(resp *http.Response, endpoint string) error {
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	if json.Unmarshal(body, apiErr) != nil ||
		(len(apiErr.ErrorMessages) == 0 && len(apiErr.Errors) == 0) {
		apiErr.ErrorMessages = []string{http.StatusText(resp.StatusCode)}
	}

	return apiErr
}

// IsNotFound reports whether the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, devhttp.ErrNotFound) || errors.Is(err, ErrProjectNotFound)
}

// IsUnauthorized reports whether the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, devhttp.ErrUnauthorized)
}

// IsRateLimited reports whether the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, devhttp.ErrRateLimited)
}
