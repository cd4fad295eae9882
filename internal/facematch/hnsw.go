package facematch

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ANNIndex is an approximate nearest-neighbor graph over gallery positions.
// It narrows the candidate set; exact distances are always recomputed by the Engine.
type ANNIndex struct {
	graph *hnsw.Graph[int]
	mu    sync.RWMutex
}

// BuildANNIndex builds an index whose keys are positions in vectors.
func BuildANNIndex(vectors []Embedding) *ANNIndex {
	idx := &ANNIndex{}
	if len(vectors) == 0 {
		return idx
	}

	g := hnsw.NewGraph[int]()
	g.M = constants.ANNMaxNeighbors
	g.Ml = 1.0 / float64(constants.ANNMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i, v := range vectors {
		if len(v) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(v)))
	}

	idx.graph = g
	return idx
}

// Search returns up to k gallery positions nearest to query.
func (a *ANNIndex) Search(query Embedding, k int) []int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.graph == nil || k <= 0 {
		return nil
	}
	neighbors := a.graph.Search([]float32(query), k)
	out := make([]int, len(neighbors))
	for i, n := range neighbors {
		out[i] = n.Key
	}
	return out
}

// Len returns the number of indexed vectors.
func (a *ANNIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.graph == nil {
		return 0
	}
	return a.graph.Len()
}
