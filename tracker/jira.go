package tracker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/randalmurphal/storyflow/jira"
)

// JiraAPI is the subset of jira.Client the tracker needs.
type JiraAPI interface {
	ProjectFetcher
	CreateIssue(ctx context.Context, req *jira.CreateIssueRequest) (*jira.CreateIssueResponse, error)
	APIVersionInUse() jira.APIVersion
	BrowseURL(key string) string
}

// Jira creates issues in one Jira project.
type Jira struct {
	api            JiraAPI
	projectKey     string
	startDateField string
	types          IssueTypeResolver
	logger         *slog.Logger
}

// JiraOption configures a Jira tracker.
type JiraOption func(*Jira)

// WithIssueTypeResolver replaces the project-backed issue type lookup.
func WithIssueTypeResolver(r IssueTypeResolver) JiraOption {
	return func(j *Jira) {
		j.types = r
	}
}

// WithStartDateField sets the custom field that receives StartDate.
func WithStartDateField(field string) JiraOption {
	return func(j *Jira) {
		if field != "" {
			j.startDateField = field
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) JiraOption {
	return func(j *Jira) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// NewJira creates a tracker for projectKey. Without WithIssueTypeResolver
// issue types come from the project with the default fallback IDs.
func NewJira(api JiraAPI, projectKey string, opts ...JiraOption) *Jira {
	j := &Jira{
		api:            api,
		projectKey:     projectKey,
		startDateField: jira.DefaultStartDateField,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.types == nil {
		j.types = NewProjectTypeResolver(api, projectKey, StaticTypeResolver{}, j.logger)
	}
	return j
}

// ProjectKey returns the project issues are created in.
func (j *Jira) ProjectKey() string {
	return j.projectKey
}

// CreateIssue implements IssueClient.
func (j *Jira) CreateIssue(ctx context.Context, fields IssueFields) (CreatedIssue, error) {
	if err := fields.Validate(); err != nil {
		return CreatedIssue{}, err
	}

	typeID, err := j.types.ResolveIssueType(ctx, fields.IsSubtask())
	if err != nil {
		return CreatedIssue{}, &IssueCreationError{Title: fields.Title, Err: err}
	}

	req := j.buildRequest(fields, typeID)
	resp, err := j.api.CreateIssue(ctx, req)
	if err != nil {
		return CreatedIssue{}, &IssueCreationError{Title: fields.Title, Err: err}
	}

	created := CreatedIssue{
		Key: resp.Key,
		URL: j.api.BrowseURL(resp.Key),
	}
	if fields.ParentKey != "" {
		created.ParentKey = fields.ParentKey
		created.ParentURL = j.api.BrowseURL(fields.ParentKey)
	}

	j.logger.Info("issue created",
		"key", created.Key,
		"parent", fields.ParentKey,
		"issue_type", typeID,
	)
	return created, nil
}

func (j *Jira) buildRequest(fields IssueFields, typeID string) *jira.CreateIssueRequest {
	criteria := make([]string, 0, len(fields.AcceptanceCriteria))
	for _, c := range fields.AcceptanceCriteria {
		if c = strings.TrimSpace(c); c != "" {
			criteria = append(criteria, c)
		}
	}

	f := jira.CreateIssueFields{
		Project:     jira.ProjectRef{Key: j.projectKey},
		IssueType:   jira.IssueTypeRef{ID: typeID},
		Summary:     fields.Title,
		Description: jira.RenderDescription(j.api.APIVersionInUse(), fields.Description, criteria),
		DueDate:     fields.DueDate,
	}
	if fields.ParentKey != "" {
		f.Parent = &jira.IssueRef{Key: fields.ParentKey}
	}
	if len(fields.Labels) > 0 {
		f.Labels = fields.Labels
	}
	if fields.StartDate != "" {
		f.CustomFields = map[string]any{j.startDateField: fields.StartDate}
	}
	return &jira.CreateIssueRequest{Fields: f}
}
