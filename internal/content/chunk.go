package content

import "strings"

// BlockSeparator joins fragment contents inside a block. The same
// separator is what parsers split paragraphs on, so a block's content
// remains re-splittable.
const BlockSeparator = "\n\n"

// DefaultMaxBlockSize is the block size bound used when the caller does
// not configure one.
const DefaultMaxBlockSize = 1000

// BuildBlocks groups fragments into size-bounded blocks with a single
// greedy pass, preserving fragment order. A block is sealed when adding
// the next fragment — joiner included — would push its joined content
// length past maxBlockSize and it already holds at least one fragment.
//
// The bound is soft: a single fragment larger than maxBlockSize is never
// split — it is placed alone in its own block, which then exceeds the
// bound. Zero fragments yield zero blocks. Block Order is sequential and
// gap-free from 0; fragment Order is carried through untouched.
func BuildBlocks(fragments []Fragment, maxBlockSize int) []Block {
	if maxBlockSize <= 0 {
		maxBlockSize = DefaultMaxBlockSize
	}

	var blocks []Block
	var current []Fragment
	size := 0

	for _, frag := range fragments {
		// size tracks the joined content length, separator included, so
		// the comparison is against what sealBlock will actually emit.
		added := len(frag.Content)
		if len(current) > 0 {
			added += len(BlockSeparator)
		}
		if size+added > maxBlockSize && len(current) > 0 {
			blocks = append(blocks, sealBlock(current, len(blocks)))
			current = nil
			size = 0
			added = len(frag.Content)
		}
		current = append(current, frag)
		size += added
	}

	if len(current) > 0 {
		blocks = append(blocks, sealBlock(current, len(blocks)))
	}

	return blocks
}

// sealBlock finalises one block: joins fragment contents and fills the
// required metadata keys.
func sealBlock(fragments []Fragment, order int) Block {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Content
	}
	joined := strings.Join(parts, BlockSeparator)

	return Block{
		Content:   joined,
		Order:     order,
		Fragments: fragments,
		Metadata: map[string]any{
			"fragment_count": len(fragments),
			"size":           len(joined),
		},
	}
}
