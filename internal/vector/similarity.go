package vector

import "math"

// Dot returns the inner product of two vectors, or 0 when their lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// It is 0 when either vector has zero norm, when lengths differ, or when the result is NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// cosineWithNorm is Cosine with the query norm precomputed.
func cosineWithNorm(query []float32, queryNorm float64, v []float32) float64 {
	if queryNorm == 0 || len(query) != len(v) || len(v) == 0 {
		return 0
	}
	n := L2Norm(v)
	if n == 0 {
		return 0
	}
	return clamp(Dot(query, v) / (queryNorm * n))
}

func clamp(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}
