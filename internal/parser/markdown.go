package parser

import (
	"strings"

	"github.com/catena-ai/catena-go/internal/content"
)

// MarkdownParser splits markdown into heading and paragraph fragments.
// Headings become their own fragments and are recorded as the ParentKey of
// the paragraphs that follow them, so block boundaries never lose the
// section a paragraph belongs to.
type MarkdownParser struct{}

// NewMarkdownParser constructs a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// ContentType returns "markdown".
func (p *MarkdownParser) ContentType() string { return "markdown" }

// CanParse sniffs for ATX headings or common markdown markers at line
// starts. Plain prose without markers falls through to the text parser.
func (p *MarkdownParser) CanParse(payload string) bool {
	for line := range strings.Lines(payload) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") ||
			strings.HasPrefix(trimmed, "## ") ||
			strings.HasPrefix(trimmed, "### ") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "```") {
			return true
		}
	}
	return false
}

// Parse splits the payload at heading and paragraph boundaries, then
// groups the fragments into size-bounded blocks.
func (p *MarkdownParser) Parse(payload string, maxBlockSize int) (*content.ParsedResource, error) {
	var frags []content.Fragment
	currentHeading := ""

	for _, para := range splitParagraphs(payload) {
		fragType := "paragraph"
		if level := headingLevel(para); level > 0 {
			fragType = "heading"
			currentHeading = strings.TrimSpace(strings.TrimLeft(para, "# "))
			frags = append(frags, content.Fragment{
				Content:   para,
				Order:     len(frags),
				Type:      fragType,
				Metadata:  map[string]any{"level": level},
				ParentKey: "",
			})
			continue
		}
		frags = append(frags, content.Fragment{
			Content:   para,
			Order:     len(frags),
			Type:      fragType,
			ParentKey: currentHeading,
		})
	}

	return finalise(p.ContentType(), content.BuildBlocks(frags, maxBlockSize)), nil
}

// headingLevel returns the ATX heading level of the paragraph's first
// line, or 0 if it is not a heading.
func headingLevel(para string) int {
	line, _, _ := strings.Cut(para, "\n")
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(trimmed) || trimmed[level] != ' ' {
		return 0
	}
	return level
}
