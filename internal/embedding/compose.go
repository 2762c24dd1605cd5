package embedding

import "math"

// Combine blends a fragment embedding with its parent block's embedding:
// element-wise sum followed by L2 normalisation, so the fragment is pulled
// toward the block's aggregate semantics while staying unit-scaled.
//
// The fragment's semantics take precedence over missing or unusable
// context: if either vector is absent, or the vector lengths differ, the
// fragment embedding is returned unchanged rather than failing the
// pipeline. The result always keeps the fragment's ID and Label.
func Combine(block, fragment Embedding) Embedding {
	if !block.HasVector() || !fragment.HasVector() {
		return fragment
	}
	if len(block.Vector) != len(fragment.Vector) {
		return fragment
	}

	sum := make([]float32, len(fragment.Vector))
	var norm float64
	for i := range sum {
		v := block.Vector[i] + fragment.Vector[i]
		sum[i] = v
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	// A zero-norm sum cannot be normalised; return it raw.
	if norm != 0 {
		for i := range sum {
			sum[i] = float32(float64(sum[i]) / norm)
		}
	}

	return Embedding{
		ID:     fragment.ID,
		Label:  fragment.Label,
		Vector: sum,
	}
}
