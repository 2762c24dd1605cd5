// Package parser turns raw payloads into the Resource → Block → Fragment
// hierarchy. Each content type has its own Parser implementation; the
// Registry selects one either by an explicit type tag or by auto-detection.
package parser

import (
	"fmt"

	"github.com/catena-ai/catena-go/internal/content"
)

// Parser extracts fragments from a raw payload and groups them into
// size-bounded blocks. Implementations must be safe to call from multiple
// goroutines.
type Parser interface {
	// ContentType returns the type tag this parser is registered under.
	ContentType() string

	// CanParse reports whether the payload looks like this parser's
	// content type. Used only for auto-detection.
	CanParse(payload string) bool

	// Parse splits the payload into fragments, groups them into blocks
	// bounded by maxBlockSize, and returns the parsed resource.
	Parse(payload string, maxBlockSize int) (*content.ParsedResource, error)
}

// Registry holds the closed set of known parsers. Registration order is
// significant: Detect returns the first parser whose CanParse accepts the
// payload.
type Registry struct {
	// byType maps content type tag to its parser.
	byType map[string]Parser
	// ordered preserves registration order for detection.
	ordered []Parser
}

// NewRegistry constructs a Registry pre-populated with the built-in
// parsers. Detection order matters: json and markdown are sniffed before
// plaintext, which accepts anything.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Parser)}
	r.Register(NewJSONParser())
	r.Register(NewMarkdownParser())
	r.Register(NewPlaintextParser())
	return r
}

// Register adds a parser. A second registration for the same content type
// replaces the first in the type map but keeps the original detection slot.
func (r *Registry) Register(p Parser) {
	if _, exists := r.byType[p.ContentType()]; !exists {
		r.ordered = append(r.ordered, p)
	}
	r.byType[p.ContentType()] = p
}

// Get returns the parser registered for the given content type tag.
func (r *Registry) Get(contentType string) (Parser, error) {
	p, ok := r.byType[contentType]
	if !ok {
		return nil, fmt.Errorf("parser: no parser registered for content type %q", contentType)
	}
	return p, nil
}

// Detect returns the first registered parser whose CanParse accepts the
// payload, in registration order.
func (r *Registry) Detect(payload string) (Parser, error) {
	for _, p := range r.ordered {
		if p.CanParse(payload) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser: no parser can handle the payload")
}

// finalise fills the resource-level metadata all parsers share.
func finalise(resourceType string, blocks []content.Block) *content.ParsedResource {
	res := &content.ParsedResource{
		ResourceType: resourceType,
		Blocks:       blocks,
	}
	res.Metadata = map[string]any{
		"total_blocks":    len(blocks),
		"total_fragments": res.TotalFragments(),
	}
	return res
}
