package embedding

import (
	"math"
	"testing"
)

// norm returns the Euclidean norm of v.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func Test_Combine_UnitNorm(t *testing.T) {
	t.Parallel()

	block := Embedding{Vector: []float32{1, 0, 0}}
	frag := Embedding{ID: "f1", Label: "fragment", Vector: []float32{0, 1, 0}}

	got := Combine(block, frag)

	if got.ID != "f1" || got.Label != "fragment" {
		t.Errorf("identity fields not kept: %+v", got)
	}
	if n := norm(got.Vector); math.Abs(n-1) > 1e-5 {
		t.Errorf("want unit norm, got %v", n)
	}
	// The blended vector points between the two inputs.
	want := float32(1 / math.Sqrt2)
	if math.Abs(float64(got.Vector[0]-want)) > 1e-5 || math.Abs(float64(got.Vector[1]-want)) > 1e-5 {
		t.Errorf("unexpected blend: %v", got.Vector)
	}
}

func Test_Combine_Deterministic(t *testing.T) {
	t.Parallel()

	block := Embedding{Vector: []float32{0.3, -0.2, 0.9}}
	frag := Embedding{Vector: []float32{-0.1, 0.5, 0.4}}

	a := Combine(block, frag)
	b := Combine(block, frag)
	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatalf("non-deterministic at %d: %v vs %v", i, a.Vector[i], b.Vector[i])
		}
	}
}

func Test_Combine_AbsentBlockVector(t *testing.T) {
	t.Parallel()

	frag := Embedding{ID: "f", Vector: []float32{0.1, 0.2}}
	got := Combine(Embedding{}, frag)
	if got.ID != "f" || len(got.Vector) != 2 || got.Vector[0] != 0.1 || got.Vector[1] != 0.2 {
		t.Errorf("want fragment unchanged, got %+v", got)
	}
}

func Test_Combine_LengthMismatchFallsBack(t *testing.T) {
	t.Parallel()

	block := Embedding{Vector: []float32{1, 2, 3}}
	frag := Embedding{Vector: []float32{4, 5}}

	got := Combine(block, frag)
	if len(got.Vector) != 2 || got.Vector[0] != 4 || got.Vector[1] != 5 {
		t.Errorf("want fragment vector unmodified, got %v", got.Vector)
	}
}

func Test_Combine_ZeroNormSkipsNormalisation(t *testing.T) {
	t.Parallel()

	block := Embedding{Vector: []float32{1, -1}}
	frag := Embedding{Vector: []float32{-1, 1}}

	got := Combine(block, frag)
	if got.Vector[0] != 0 || got.Vector[1] != 0 {
		t.Errorf("want raw zero sum, got %v", got.Vector)
	}
}
