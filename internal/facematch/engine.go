package facematch

import (
	"fmt"
	"math"
)

// Gallery is an immutable, indexed view of the registered population.
type Gallery interface {
	Len() int
	// Dim is the embedding length shared by every entry, 0 when empty.
	Dim() int
	PersonID(i int) string
	Vector(i int) []float64
}

// CandidateSearcher is implemented by galleries carrying an approximate
// nearest-neighbor index. Candidates returns gallery indices worth scanning.
type CandidateSearcher interface {
	Candidates(query Embedding, k int) []int
}

// Engine matches embeddings against a gallery using Euclidean distance and a hard tolerance.
type Engine struct {
	tolerance      float64
	candidateLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCandidateLimit makes the engine scan only the k approximate nearest
// neighbors when the gallery supports it. k <= 0 disables it.
func WithCandidateLimit(k int) Option {
	return func(e *Engine) {
		e.candidateLimit = k
	}
}

// NewEngine creates an engine accepting matches at or below tolerance.
func NewEngine(tolerance float64, opts ...Option) *Engine {
	e := &Engine{tolerance: tolerance}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tolerance returns the configured distance threshold.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

func unknownResult(distance float64) MatchResult {
	return MatchResult{PersonID: Unknown, Confidence: 0, Distance: distance}
}

// Match returns the nearest identity for query, or Unknown when the gallery is
// empty or the nearest embedding is farther than the tolerance.
// Equal distances resolve to the lowest gallery index.
func (e *Engine) Match(g Gallery, query Embedding) (MatchResult, error) {
	if g == nil || g.Len() == 0 {
		return unknownResult(math.Inf(1)), nil
	}
	if len(query) != g.Dim() {
		return unknownResult(math.Inf(1)), fmt.Errorf("%w: query has %d values, population has %d",
			ErrDimensionMismatch, len(query), g.Dim())
	}

	q := query.Float64()
	best, bestDist := e.nearest(g, query, q)
	if best < 0 || bestDist > e.tolerance {
		return unknownResult(bestDist), nil
	}

	return MatchResult{
		PersonID:   g.PersonID(best),
		Confidence: 1 - bestDist,
		Distance:   bestDist,
	}, nil
}

func (e *Engine) nearest(g Gallery, query Embedding, q []float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	consider := func(i int) {
		d := EuclideanDistance(q, g.Vector(i))
		if d < bestDist || (d == bestDist && i < best) {
			best, bestDist = i, d
		}
	}

	if cs, ok := g.(CandidateSearcher); ok && e.candidateLimit > 0 {
		if candidates := cs.Candidates(query, e.candidateLimit); len(candidates) > 0 {
			for _, i := range candidates {
				consider(i)
			}
			return best, bestDist
		}
	}

	for i := range g.Len() {
		consider(i)
	}
	return best, bestDist
}

// MatchFrame matches every detected face of one frame against the same gallery.
// Faces are matched independently; an error on one face does not affect the others.
func (e *Engine) MatchFrame(g Gallery, faces []Face) []FaceMatch {
	matches := make([]FaceMatch, len(faces))
	for i, f := range faces {
		res, err := e.Match(g, f.Embedding)
		matches[i] = FaceMatch{BBox: f.BBox, Result: res, Err: err}
	}
	return matches
}
