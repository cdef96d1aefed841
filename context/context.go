package context

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/prompt"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

// =============================================================================
// Context Injection Helpers
// =============================================================================
// These helpers allow storyflow services to be injected into context.Context
// for use by flowgraph nodes.

// serviceContextKey is a private type for context keys to avoid collisions
type serviceContextKey string

// Context keys for storyflow services
const (
	generatorServiceKey serviceContextKey = "storyflow.generator"
	issuesServiceKey    serviceContextKey = "storyflow.issues"
	promptServiceKey    serviceContextKey = "storyflow.prompts"
	metricsServiceKey   serviceContextKey = "storyflow.metrics"
	loggerServiceKey    serviceContextKey = "storyflow.logger"
	siteServiceKey      serviceContextKey = "storyflow.site"
)

// Site describes where issues end up. It is shown in previews.
type Site struct {
	ProjectKey string
	BaseURL    string
}

// WithGenerator adds a story generator to the context
func WithGenerator(ctx context.Context, gen *story.Generator) context.Context {
	return context.WithValue(ctx, generatorServiceKey, gen)
}

// Generator extracts the story generator from context
func Generator(ctx context.Context) *story.Generator {
	if gen, ok := ctx.Value(generatorServiceKey).(*story.Generator); ok {
		return gen
	}
	return nil
}

// MustGenerator extracts the story generator or panics
func MustGenerator(ctx context.Context) *story.Generator {
	gen := Generator(ctx)
	if gen == nil {
		panic("storyflow/context: story.Generator not found in context")
	}
	return gen
}

// WithIssues adds an issue client to the context
func WithIssues(ctx context.Context, client tracker.IssueClient) context.Context {
	return context.WithValue(ctx, issuesServiceKey, client)
}

// Issues extracts the issue client from context
func Issues(ctx context.Context) tracker.IssueClient {
	if client, ok := ctx.Value(issuesServiceKey).(tracker.IssueClient); ok {
		return client
	}
	return nil
}

// MustIssues extracts the issue client or panics
func MustIssues(ctx context.Context) tracker.IssueClient {
	client := Issues(ctx)
	if client == nil {
		panic("storyflow/context: tracker.IssueClient not found in context")
	}
	return client
}

// WithPrompt adds a prompt loader to the context
func WithPrompt(ctx context.Context, loader *prompt.Loader) context.Context {
	return context.WithValue(ctx, promptServiceKey, loader)
}

// Prompt extracts prompt loader from context
func Prompt(ctx context.Context) *prompt.Loader {
	if loader, ok := ctx.Value(promptServiceKey).(*prompt.Loader); ok {
		return loader
	}
	return nil
}

// WithMetrics adds a metrics recorder to the context
func WithMetrics(ctx context.Context, rec *metrics.Recorder) context.Context {
	return context.WithValue(ctx, metricsServiceKey, rec)
}

// Metrics extracts the metrics recorder from context. The nil recorder it
// returns when none is set is safe to use.
func Metrics(ctx context.Context) *metrics.Recorder {
	if rec, ok := ctx.Value(metricsServiceKey).(*metrics.Recorder); ok {
		return rec
	}
	return nil
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerServiceKey, logger)
}

// Logger extracts the logger from context, falling back to slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerServiceKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithSite adds tracker site details to the context
func WithSite(ctx context.Context, site Site) context.Context {
	return context.WithValue(ctx, siteServiceKey, site)
}

// SiteFrom extracts tracker site details from context.
func SiteFrom(ctx context.Context) (Site, bool) {
	site, ok := ctx.Value(siteServiceKey).(Site)
	return site, ok
}
