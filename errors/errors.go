package errors

import "errors"

// CLI errors with actionable guidance.
var (
	// ErrNotAuthenticated means Jira rejected the credentials.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotConfigured means a required setting is missing.
	ErrNotConfigured = errors.New("not configured")

	// ErrProjectNotFound means the configured Jira project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrConnectionFailed means a remote service is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrPermissionDenied means the credentials lack access.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSessionExpired means an OAuth token could not be refreshed.
	ErrSessionExpired = errors.New("session expired")

	// ErrLLMUnavailable means the language model could not be reached.
	ErrLLMUnavailable = errors.New("llm unavailable")
)
