// Package facematch resolves face embeddings to registered identities.
// It is shared by the capture pipeline and the registration command.
package facematch

import "errors"

// Unknown is the person-id reported when no registered identity is close enough.
const Unknown = "Unknown"

var (
	// ErrDimensionMismatch is returned when a query embedding length differs from the population.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedding is a fixed-length face descriptor produced by the encoder.
type Embedding []float32

// Float64 returns a float64 copy used for distance math.
func (e Embedding) Float64() []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Face is one face detected in a frame by the encoder.
type Face struct {
	BBox      []float64 // [x1, y1, x2, y2] in frame pixels
	DetScore  float64
	Embedding Embedding
}

// MatchResult is the outcome of matching one embedding.
// Confidence is 1 - Distance for accepted matches and is not clamped.
type MatchResult struct {
	PersonID   string
	Confidence float64
	Distance   float64 // distance to the nearest registered embedding; +Inf for an empty population
}

// IsUnknown reports whether no identity was accepted.
func (r MatchResult) IsUnknown() bool {
	return r.PersonID == Unknown
}

// FaceMatch pairs a detected face region with its match result.
type FaceMatch struct {
	BBox   []float64
	Result MatchResult
	Err    error // set when the face could not be matched (e.g. dimension mismatch)
}
