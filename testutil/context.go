package testutil

import (
	"context"
	"testing"
	"time"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/logging"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

// TestContext returns a context that is canceled when the test ends.
func TestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx
}

// TestContextWithTimeout returns a context with a timeout.
// The context is also canceled when the test ends.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}

// NewServices returns services backed by the given completer and issue
// client, with a discarding logger and a private metrics registry.
func NewServices(c story.Completer, issues tracker.IssueClient) *sfcontext.Services {
	return &sfcontext.Services{
		Generator: story.NewGenerator(c),
		Issues:    issues,
		Metrics:   metrics.New(),
		Logger:    logging.NewNop(),
		Site:      sfcontext.Site{ProjectKey: "PROJ", BaseURL: "https://example.atlassian.net"},
	}
}

// ServicesContext returns a test context with services injected.
func ServicesContext(t *testing.T, services *sfcontext.Services) context.Context {
	t.Helper()
	return services.InjectAll(TestContext(t))
}
