// Package errors turns storyflow failures into CLI messages with a
// suggestion the user can act on.
//
// Core types:
//   - CLIError: wraps an error with message, suggestion, and details
//   - ErrorMessenger: the wording; StoryflowMessenger is the default
//
// Jira failures go through Explain, which recognizes missing projects,
// rejected credentials and unreachable hosts:
//
//	if err != nil {
//	    return errors.Explain(err, settings.Jira.Client.URL, settings.Jira.ProjectKey)
//	}
//
// Generation failures go through WrapLLMError with the configured provider.
// Predicates such as IsAuthError work on wrapped and unwrapped errors.
package errors
