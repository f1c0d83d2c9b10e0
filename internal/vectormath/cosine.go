// Package vectormath provides the numeric primitives used for embedding
// similarity scoring.
package vectormath

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors cannot be compared
// because their lengths differ or either is empty.
var ErrDimensionMismatch = errors.New("vectormath: dimension mismatch")

// Cosine returns the cosine similarity between a and b, a value in [-1, 1].
// When either vector has zero norm the result is 0, never NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("%w: len(a)=%d len(b)=%d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}

	return dot / denom, nil
}
