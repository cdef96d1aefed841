package jira

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ADFDocument represents an Atlassian Document Format document.
// This is used for rich text fields in Jira Cloud API v3.
type ADFDocument struct {
	Version int       `json:"version"` // Always 1
	Type    string    `json:"type"`    // Always "doc"
	Content []ADFNode `json:"content"`
}

// ADFNode represents a node in an ADF document.
type ADFNode struct {
	Type    string         `json:"type"`
	Content []ADFNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []ADFMark      `json:"marks,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// ADFMark represents formatting applied to text.
type ADFMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// ADF node types
const (
	ADFNodeDoc       = "doc"
	ADFNodeParagraph = "paragraph"
	ADFNodeText      = "text"
	ADFNodeHardBreak = "hardBreak"
)

// ADF mark types
const (
	ADFMarkStrong = "strong"
	ADFMarkEm     = "em"
)

// AcceptanceHeading introduces the criteria block of a story description.
const AcceptanceHeading = "Acceptance Criteria:"

// CriterionMarker prefixes every acceptance criterion line.
const CriterionMarker = "☐ "

// NewADFDocument creates a new empty ADF document.
func NewADFDocument() *ADFDocument {
	return &ADFDocument{
		Version: 1,
		Type:    ADFNodeDoc,
		Content: []ADFNode{},
	}
}

// Validate validates the ADF document structure.
func (d *ADFDocument) Validate() error {
	if d.Version != 1 {
		return ErrADFVersionOnly
	}
	if d.Type != ADFNodeDoc {
		return ErrADFTypeInvalid
	}
	return nil
}

// AddParagraph adds a paragraph with plain text to the document.
func (d *ADFDocument) AddParagraph(text string) {
	d.AddNodes(ADFNode{Type: ADFNodeText, Text: text})
}

// AddNodes adds a paragraph built from inline nodes.
func (d *ADFDocument) AddNodes(inline ...ADFNode) {
	d.Content = append(d.Content, ADFNode{
		Type:    ADFNodeParagraph,
		Content: inline,
	})
}

// TextWithMark creates a text node with a single mark.
func TextWithMark(text, markType string, attrs map[string]any) ADFNode {
	return ADFNode{
		Type:  ADFNodeText,
		Text:  text,
		Marks: []ADFMark{{Type: markType, Attrs: attrs}},
	}
}

// Bold creates bold text.
func Bold(text string) ADFNode {
	return TextWithMark(text, ADFMarkStrong, nil)
}

// StoryADF renders a story description for Jira Cloud: one paragraph per
// blank-line separated block of description, a bold criteria heading, then
// one checkbox paragraph per criterion.
func StoryADF(description string, criteria []string) *ADFDocument {
	doc := NewADFDocument()
	for _, para := range SplitParagraphs(description) {
		doc.AddParagraph(para)
	}
	doc.AddNodes(Bold(AcceptanceHeading))
	for _, c := range criteria {
		doc.AddParagraph(CriterionMarker + c)
	}
	return doc
}

// SplitParagraphs splits text on blank lines, trims each block and drops
// the empty ones.
func SplitParagraphs(text string) []string {
	parts := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PlainText flattens a document to text, one line per block node. Used for
// logs and previews; marks are dropped.
func (d *ADFDocument) PlainText() string {
	var b strings.Builder
	for i := range d.Content {
		if i > 0 {
			b.WriteString("\n")
		}
		writeInline(&b, d.Content[i].Content)
	}
	return b.String()
}

func writeInline(b *strings.Builder, nodes []ADFNode) {
	for _, n := range nodes {
		switch n.Type {
		case ADFNodeText:
			b.WriteString(n.Text)
		case ADFNodeHardBreak:
			b.WriteString("\n")
		default:
			writeInline(b, n.Content)
		}
	}
}

// ParseADF decodes an ADF value that arrived as raw JSON or as a generic map.
func ParseADF(v any) (*ADFDocument, error) {
	var data []byte
	switch val := v.(type) {
	case *ADFDocument:
		return val, val.Validate()
	case []byte:
		data = val
	case string:
		data = []byte(val)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("marshal adf: %w", err)
		}
	}

	var doc ADFDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal adf: %w", err)
	}
	return &doc, doc.Validate()
}
