package parser

import (
	"strings"

	"github.com/catena-ai/catena-go/internal/content"
)

// PlaintextParser splits plain text into paragraph fragments on blank
// lines. It accepts any payload, so it must be registered last — it is
// the auto-detection fallback.
type PlaintextParser struct{}

// NewPlaintextParser constructs a PlaintextParser.
func NewPlaintextParser() *PlaintextParser {
	return &PlaintextParser{}
}

// ContentType returns "text".
func (p *PlaintextParser) ContentType() string { return "text" }

// CanParse always returns true — plaintext is the fallback parser.
func (p *PlaintextParser) CanParse(string) bool { return true }

// Parse splits the payload into paragraphs on blank lines and groups them
// into size-bounded blocks.
func (p *PlaintextParser) Parse(payload string, maxBlockSize int) (*content.ParsedResource, error) {
	var frags []content.Fragment
	for _, para := range splitParagraphs(payload) {
		frags = append(frags, content.Fragment{
			Content: para,
			Order:   len(frags),
			Type:    "paragraph",
		})
	}
	return finalise(p.ContentType(), content.BuildBlocks(frags, maxBlockSize)), nil
}

// splitParagraphs splits text on blank lines, trimming each paragraph and
// dropping empty ones. Windows line endings are normalised first.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
