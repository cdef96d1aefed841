package jira

import (
	"strings"
)

// wikiEscaper neutralizes the characters Jira Wiki Markup treats as
// formatting so generated prose is shown verbatim.
var wikiEscaper = strings.NewReplacer(
	`{`, `\{`,
	`}`, `\}`,
	`[`, `\[`,
	`]`, `\]`,
	`|`, `\|`,
)

// StoryWiki renders a story description as Jira Wiki Markup for
// Server/Data Center (API v2). Layout matches StoryADF.
func StoryWiki(description string, criteria []string) string {
	blocks := make([]string, 0, len(criteria)+4)
	for _, para := range SplitParagraphs(description) {
		blocks = append(blocks, wikiEscaper.Replace(para))
	}
	blocks = append(blocks, "*"+AcceptanceHeading+"*")

	lines := make([]string, len(criteria))
	for i, c := range criteria {
		lines[i] = CriterionMarker + wikiEscaper.Replace(c)
	}
	if len(lines) > 0 {
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// RenderDescription picks the description encoding for an API version:
// an ADF document for v3 and wiki markup for v2.
func RenderDescription(version APIVersion, description string, criteria []string) any {
	if version == APIVersionV2 {
		return StoryWiki(description, criteria)
	}
	return StoryADF(description, criteria)
}
