package jira

import (
	"encoding/json"
	"regexp"
	"time"
)

// DeploymentType represents the type of Jira deployment.
type DeploymentType string

// Deployment types for Jira instances.
const (
	DeploymentCloud      DeploymentType = "Cloud"
	DeploymentServer     DeploymentType = "Server"
	DeploymentDataCenter DeploymentType = "DataCenter"
)

// DateFormat is the layout Jira expects for date-only fields such as duedate.
const DateFormat = "2006-01-02"

// DefaultStartDateField is the custom field Jira Cloud uses for "Start date".
const DefaultStartDateField = "customfield_10015"

// APIVersion represents the Jira REST API version.
type APIVersion string

// API versions supported by the Jira REST API.
const (
	APIVersionAuto APIVersion = "auto"
	APIVersionV2   APIVersion = "v2"
	APIVersionV3   APIVersion = "v3"
)

// ServerInfo represents the response from /rest/api/X/serverInfo.
type ServerInfo struct {
	BaseURL        string `json:"baseUrl"`
	Version        string `json:"version"`
	DeploymentType string `json:"deploymentType"` // "Cloud", "Server", "DataCenter"
	ServerTitle    string `json:"serverTitle"`
}

// Project represents a Jira project as returned by GET /project/{key}.
type Project struct {
	ID         string      `json:"id"`
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	Self       string      `json:"self,omitempty"`
	IssueTypes []IssueType `json:"issueTypes,omitempty"`
}

// IssueType represents an issue type in Jira.
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subtask     bool   `json:"subtask"`
}

// CreateIssueRequest represents a request to create an issue.
type CreateIssueRequest struct {
	Fields CreateIssueFields `json:"fields"`
}

// CreateIssueFields represents the fields for creating an issue.
type CreateIssueFields struct {
	Project     ProjectRef   `json:"project"`
	IssueType   IssueTypeRef `json:"issuetype"`
	Summary     string       `json:"summary"`
	Description any          `json:"description,omitempty"` // ADF (v3) or wiki string (v2)
	Labels      []string     `json:"labels,omitempty"`
	DueDate     string       `json:"duedate,omitempty"`
	Parent      *IssueRef    `json:"parent,omitempty"`

	// CustomFields are flattened into the fields object by MarshalJSON,
	// e.g. "customfield_10015": "2025-01-31".
	CustomFields map[string]any `json:"-"`
}

// MarshalJSON flattens CustomFields alongside the standard fields.
func (f CreateIssueFields) MarshalJSON() ([]byte, error) {
	type plain CreateIssueFields
	data, err := json.Marshal(plain(f))
	if err != nil || len(f.CustomFields) == 0 {
		return data, err
	}

	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range f.CustomFields {
		if _, taken := merged[k]; taken {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// ProjectRef references a project by key or ID.
type ProjectRef struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// IssueTypeRef references an issue type by name or ID.
type IssueTypeRef struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// IssueRef references an issue by key or ID.
type IssueRef struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// CreateIssueResponse represents the response from creating an issue.
type CreateIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// issueKeyRegex validates Jira issue keys (e.g., KAN-12).
var issueKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)

// ValidateIssueKey validates a Jira issue key format.
func ValidateIssueKey(key string) bool {
	return issueKeyRegex.MatchString(key)
}

// ParseDate parses a Jira date-only value ("2025-01-31").
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
