// Package embedding holds vector helpers shared by the embedder
// implementations and the index.
package embedding

import "math"

// Normalize returns an L2-normalized copy of vec. A zero vector is returned as zeros.
func Normalize(vec []float64) []float64 {
	out := make([]float64, len(vec))
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

// Dot returns the inner product over the shared prefix of a and b.
func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
