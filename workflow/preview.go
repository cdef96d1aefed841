package workflow

import (
	"fmt"
	"strings"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/story"
)

const previewRule = "============================================================"

// FormatPreview renders a story for human review. Site details are
// appended when site is non-zero.
func FormatPreview(st story.Story, site sfcontext.Site) string {
	var b strings.Builder

	b.WriteString(previewRule + "\n")
	b.WriteString("                   JIRA STORY PREVIEW\n")
	b.WriteString(previewRule + "\n\n")

	b.WriteString("TITLE:\n")
	b.WriteString(st.Title + "\n\n")

	b.WriteString("DESCRIPTION:\n")
	b.WriteString(st.Description + "\n\n")

	b.WriteString("ACCEPTANCE CRITERIA:\n")
	for i, c := range st.AcceptanceCriteria {
		fmt.Fprintf(&b, "   %d. %s\n", i+1, c)
	}

	if site.ProjectKey != "" || site.BaseURL != "" {
		b.WriteString("\n" + previewRule + "\n")
		b.WriteString("This story will be created in:\n")
		if site.ProjectKey != "" {
			fmt.Fprintf(&b, "  Project: %s\n", site.ProjectKey)
		}
		if site.BaseURL != "" {
			fmt.Fprintf(&b, "  Site:    %s\n", site.BaseURL)
		}
		b.WriteString(previewRule + "\n")
	}

	return b.String()
}
