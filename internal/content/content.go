// Package content defines the three-level ingestion hierarchy —
// Resource → Block → Fragment — and the size-bounded chunking algorithm
// that groups fragments into blocks. Parsers produce fragments; the
// pipeline embeds and persists the resulting hierarchy.
package content

// Fragment is the smallest atomic content unit produced by a parser.
// Fragments are immutable once produced.
type Fragment struct {
	// Content is the raw text of the fragment.
	Content string

	// Order is the fragment's 0-based position. Parsers assign a globally
	// increasing order across the whole resource; BuildBlocks never
	// renumbers it.
	Order int

	// Type classifies the fragment (paragraph, heading, json_member, ...).
	Type string

	// ParentKey optionally names the structural parent the fragment was
	// extracted from (e.g. the enclosing markdown heading or JSON key).
	ParentKey string

	// Metadata holds arbitrary parser-specific key-value pairs.
	Metadata map[string]any
}

// Block is an ordered group of contiguous fragments whose joined content
// stays within a configured maximum size (soft bound — see BuildBlocks).
type Block struct {
	// Content is the fragments' content joined by a blank-line separator.
	Content string

	// Order is the block's 0-based position within the resource,
	// sequential and gap-free.
	Order int

	// Fragments are the block's fragments in their original order.
	Fragments []Fragment

	// Metadata always carries "fragment_count" and "size" (character
	// length of Content).
	Metadata map[string]any
}

// ParsedResource is the top-level result of parsing one raw payload.
type ParsedResource struct {
	// ResourceType is the content type tag of the parser that produced it.
	ResourceType string

	// Blocks are the size-bounded blocks in order.
	Blocks []Block

	// Metadata always carries "total_blocks" and "total_fragments".
	Metadata map[string]any
}

// TotalFragments returns the number of fragments across all blocks.
func (r *ParsedResource) TotalFragments() int {
	n := 0
	for _, b := range r.Blocks {
		n += len(b.Fragments)
	}
	return n
}

// Flatten returns all fragments across all blocks in block order then
// fragment order. For a well-formed resource this reproduces the exact
// fragment sequence the parser emitted.
func (r *ParsedResource) Flatten() []Fragment {
	out := make([]Fragment, 0, r.TotalFragments())
	for _, b := range r.Blocks {
		out = append(out, b.Fragments...)
	}
	return out
}
