package facematch

import "gonum.org/v1/gonum/floats"

// EuclideanDistance returns the L2 distance between two vectors of equal length.
// It panics on a length mismatch, like the gonum routine it wraps.
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
