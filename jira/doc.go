// Package jira provides a small client for the Jira REST API, focused on
// creating stories and subtasks.
//
// Both Jira Cloud (API v3) and Jira Server/Data Center (API v2) are
// supported. With APIVersion "auto" the client calls serverInfo once and
// picks the version matching the deployment.
//
// # Authentication
//
//   - API Token (Cloud): Email + API token
//   - OAuth 2.0 (Cloud): access token refreshed through golang.org/x/oauth2
//   - Personal Access Token (Server/DC): PAT token
//   - Basic Auth (legacy): Username + password
//
// # Usage
//
//	cfg := jira.DefaultConfig()
//	cfg.URL = jira.CloudURL("acme")
//	cfg.Auth = jira.AuthConfig{Type: jira.AuthAPIToken, Email: "you@example.com", Token: "..."}
//
//	client, err := jira.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//
//	resp, err := client.CreateIssue(ctx, &jira.CreateIssueRequest{
//		Fields: jira.CreateIssueFields{
//			Project:     jira.ProjectRef{Key: "KAN"},
//			IssueType:   jira.IssueTypeRef{ID: "10001"},
//			Summary:     "Password reset",
//			Description: jira.RenderDescription(client.APIVersionInUse(), desc, criteria),
//		},
//	})
//
// # Rich Text
//
// Story descriptions are rendered as ADF for Cloud and as Wiki Markup for
// Server: description paragraphs, a bold "Acceptance Criteria:" line, then
// one "☐ " line per criterion.
//
// # Error Handling
//
// Errors unwrap to the storyflow/http sentinels:
//
//	if errors.Is(err, http.ErrRateLimited) {
//		// back off
//	}
package jira
