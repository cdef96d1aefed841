package errors

import (
	"errors"
	"fmt"
	"strings"

	devhttp "github.com/randalmurphal/storyflow/http"
	"github.com/randalmurphal/storyflow/jira"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the underlying error
	Err error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ErrorMessenger provides the wording of CLI errors.
type ErrorMessenger interface {
	AuthErrorMessage() (message, suggestion string)
	SessionExpiredMessage() (message, suggestion string)
	PermissionDeniedMessage() (message, suggestion string)

	// ConnectionErrorMessage, TLSErrorMessage and TimeoutErrorMessage get the
	// URL that failed.
	ConnectionErrorMessage(serverURL string) (message, suggestion string)
	TLSErrorMessage(serverURL string) (message, suggestion string)
	TimeoutErrorMessage(serverURL string) (message, suggestion string)

	NotConfiguredMessage(key string) (message, suggestion string)
	ProjectNotFoundMessage(projectKey string) (message, suggestion string)
	LLMErrorMessage(provider string) (message, suggestion string)
}

// StoryflowMessenger words errors for the storyflow CLI.
type StoryflowMessenger struct{}

func (StoryflowMessenger) AuthErrorMessage() (string, string) {
	return "Jira rejected the credentials.",
		"Check jira_email and jira_token (JIRA_EMAIL, JIRA_API_TOKEN).\nCreate a token at https://id.atlassian.com/manage-profile/security/api-tokens"
}

func (StoryflowMessenger) SessionExpiredMessage() (string, string) {
	return "The Jira OAuth token expired and could not be refreshed.",
		"Set a new jira_refresh_token or switch jira_auth_type to api_token."
}

func (StoryflowMessenger) PermissionDeniedMessage() (string, string) {
	return "The Jira user cannot create issues in this project.",
		"Ask a project admin for the Create Issues permission."
}

func (StoryflowMessenger) ConnectionErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Cannot connect to %s", serverURL),
		"Check that:\n  - jira_domain or jira_url is correct\n  - Your network connection is working"
}

func (StoryflowMessenger) TLSErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("TLS/certificate error connecting to %s", serverURL),
		"Check that the server certificate is valid."
}

func (StoryflowMessenger) TimeoutErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Connection to %s timed out", serverURL),
		"The server may be overloaded or unreachable.\nTry again in a moment."
}

func (StoryflowMessenger) NotConfiguredMessage(key string) (string, string) {
	return fmt.Sprintf("%s is not configured.", key),
		fmt.Sprintf("Run: storyflow config set %s <value>\nor set STORYFLOW_%s.", key, strings.ToUpper(key))
}

func (StoryflowMessenger) ProjectNotFoundMessage(projectKey string) (string, string) {
	return fmt.Sprintf("Jira project %s was not found.", projectKey),
		"Check jira_project_key (JIRA_PROJECT_KEY) and that the user can browse the project."
}

func (StoryflowMessenger) LLMErrorMessage(provider string) (string, string) {
	switch provider {
	case "openai":
		return "The OpenAI API request failed.",
			"Check openai_api_key (OPENAI_API_KEY) and openai_base_url."
	default:
		return "The claude CLI could not generate a reply.",
			"Check that `claude` is installed, on PATH and logged in."
	}
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) ErrorMessenger {
	cfg := &WrapConfig{
		Messenger: StoryflowMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// WrapAuthError wraps authentication-related errors with helpful guidance.
func WrapAuthError(err error, opts ...Option) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	messenger := getMessenger(opts)

	if strings.Contains(errStr, "oauth2") && strings.Contains(errStr, "token") {
		msg, suggestion := messenger.SessionExpiredMessage()
		return &CLIError{
			Err:        ErrSessionExpired,
			Message:    msg,
			Details:    err.Error(),
			Suggestion: suggestion,
		}
	}

	if errors.Is(err, devhttp.ErrUnauthorized) || strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "401") {
		msg, suggestion := messenger.AuthErrorMessage()
		return &CLIError{
			Err:        ErrNotAuthenticated,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	if errors.Is(err, devhttp.ErrForbidden) || strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "403") {
		msg, suggestion := messenger.PermissionDeniedMessage()
		return &CLIError{
			Err:        ErrPermissionDenied,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	return err
}

// WrapConnectionError wraps connection-related errors with helpful guidance.
func WrapConnectionError(err error, serverURL string, opts ...Option) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	messenger := getMessenger(opts)

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp") {
		msg, suggestion := messenger.ConnectionErrorMessage(serverURL)
		return &CLIError{
			Err:        ErrConnectionFailed,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	if strings.Contains(errStr, "certificate") || strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") {
		msg, suggestion := messenger.TLSErrorMessage(serverURL)
		return &CLIError{
			Err:        ErrConnectionFailed,
			Message:    msg,
			Details:    err.Error(),
			Suggestion: suggestion,
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		msg, suggestion := messenger.TimeoutErrorMessage(serverURL)
		return &CLIError{
			Err:        ErrConnectionFailed,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	return err
}

// WrapProjectError explains a missing Jira project.
func WrapProjectError(err error, projectKey string, opts ...Option) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, jira.ErrProjectNotFound) || errors.Is(err, devhttp.ErrNotFound) {
		msg, suggestion := getMessenger(opts).ProjectNotFoundMessage(projectKey)
		return &CLIError{
			Err:        errors.Join(ErrProjectNotFound, err),
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	return err
}

// WrapLLMError explains a failed generation call. Errors that already
// carry guidance are returned unchanged.
func WrapLLMError(err error, provider string, opts ...Option) error {
	if err == nil {
		return nil
	}
	var cli *CLIError
	if errors.As(err, &cli) {
		return err
	}

	msg, suggestion := getMessenger(opts).LLMErrorMessage(provider)
	return &CLIError{
		Err:        errors.Join(ErrLLMUnavailable, err),
		Message:    msg,
		Details:    err.Error(),
		Suggestion: suggestion,
	}
}

// NewNotConfiguredError reports a missing setting.
func NewNotConfiguredError(key string, opts ...Option) error {
	msg, suggestion := getMessenger(opts).NotConfiguredMessage(key)
	return &CLIError{
		Err:        ErrNotConfigured,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// NewNotAuthenticatedError creates an error for rejected credentials.
func NewNotAuthenticatedError(opts ...Option) error {
	msg, suggestion := getMessenger(opts).AuthErrorMessage()
	return &CLIError{
		Err:        ErrNotAuthenticated,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// Explain runs err through the Jira wrappers in order of specificity.
func Explain(err error, jiraURL, projectKey string, opts ...Option) error {
	if err == nil {
		return nil
	}
	for _, wrap := range []func(error) error{
		func(e error) error { return WrapProjectError(e, projectKey, opts...) },
		func(e error) error { return WrapAuthError(e, opts...) },
		func(e error) error { return WrapConnectionError(e, jiraURL, opts...) },
	} {
		if wrapped := wrap(err); wrapped != err {
			return wrapped
		}
	}
	return err
}
