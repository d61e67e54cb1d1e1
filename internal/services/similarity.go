package services

import (
	"fmt"
	"math"
)

// DimensionMismatchError reports two vectors that cannot be compared.
type DimensionMismatchError struct {
	LenA int
	LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("similarity: dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// Cosine computes the cosine similarity of two embedding vectors,
// accumulating in float64. A zero-norm input yields 0 rather than NaN;
// mismatched lengths are a *DimensionMismatchError. Symmetric in its
// arguments.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}
