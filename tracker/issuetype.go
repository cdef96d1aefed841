package tracker

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/randalmurphal/storyflow/jira"
)

// Default issue type IDs used when a project's types cannot be resolved.
// They match the IDs of a fresh Jira Cloud team-managed project.
const (
	DefaultStoryTypeID   = "10001"
	DefaultSubtaskTypeID = "10003"
)

// IssueTypeResolver picks the issue type ID for a story or subtask.
type IssueTypeResolver interface {
	ResolveIssueType(ctx context.Context, subtask bool) (string, error)
}

// StaticTypeResolver always returns the configured IDs.
type StaticTypeResolver struct {
	StoryID   string
	SubtaskID string
}

// ResolveIssueType implements IssueTypeResolver.
func (r StaticTypeResolver) ResolveIssueType(_ context.Context, subtask bool) (string, error) {
	if subtask {
		return r.SubtaskID, nil
	}
	return r.StoryID, nil
}

// ProjectFetcher loads a project together with its issue types.
type ProjectFetcher interface {
	GetProject(ctx context.Context, key string) (*jira.Project, error)
}

// ProjectTypeResolver reads the project's issue types on first use and
// picks by name. Fetch failures and misses fall back to Fallback.
type ProjectTypeResolver struct {
	fetcher    ProjectFetcher
	projectKey string
	fallback   StaticTypeResolver
	logger     *slog.Logger

	mu     sync.Mutex
	loaded bool
	types  []jira.IssueType
}

// NewProjectTypeResolver creates a resolver for projectKey.
// Empty fallback IDs take the package defaults.
func NewProjectTypeResolver(fetcher ProjectFetcher, projectKey string, fallback StaticTypeResolver, logger *slog.Logger) *ProjectTypeResolver {
	if fallback.StoryID == "" {
		fallback.StoryID = DefaultStoryTypeID
	}
	if fallback.SubtaskID == "" {
		fallback.SubtaskID = DefaultSubtaskTypeID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectTypeResolver{
		fetcher:    fetcher,
		projectKey: projectKey,
		fallback:   fallback,
		logger:     logger,
	}
}

// ResolveIssueType implements IssueTypeResolver. It never returns an error;
// a failed lookup resolves to the fallback ID.
func (r *ProjectTypeResolver) ResolveIssueType(ctx context.Context, subtask bool) (string, error) {
	types := r.issueTypes(ctx)

	var id string
	if subtask {
		id = PickSubtaskType(types)
	} else {
		id = PickStoryType(types)
	}
	if id == "" {
		return r.fallback.ResolveIssueType(ctx, subtask)
	}
	return id, nil
}

// issueTypes fetches once; a failed fetch is retried on the next call.
func (r *ProjectTypeResolver) issueTypes(ctx context.Context) []jira.IssueType {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.types
	}

	project, err := r.fetcher.GetProject(ctx, r.projectKey)
	if err != nil {
		r.logger.Warn("issue type lookup failed, using fallback IDs",
			"project", r.projectKey,
			"error", err,
		)
		return nil
	}

	r.types = project.IssueTypes
	r.loaded = true
	return r.types
}

// PickStoryType chooses among non-subtask types: "story", then "task",
// then any name containing either, then the first one.
func PickStoryType(types []jira.IssueType) string {
	var candidates []jira.IssueType
	for _, t := range types {
		if !t.Subtask && !strings.Contains(strings.ToLower(t.Name), "sub") {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	for _, want := range []string{"story", "task"} {
		for _, t := range candidates {
			if strings.ToLower(t.Name) == want {
				return t.ID
			}
		}
	}
	for _, t := range candidates {
		name := strings.ToLower(t.Name)
		if strings.Contains(name, "story") || strings.Contains(name, "task") {
			return t.ID
		}
	}
	return candidates[0].ID
}

// PickSubtaskType chooses a type flagged as subtask or named
// "sub-task"/"subtask", then any name containing "sub".
func PickSubtaskType(types []jira.IssueType) string {
	for _, t := range types {
		name := strings.ToLower(t.Name)
		if t.Subtask || name == "sub-task" || name == "subtask" {
			return t.ID
		}
	}
	for _, t := range types {
		if strings.Contains(strings.ToLower(t.Name), "sub") {
			return t.ID
		}
	}
	return ""
}
