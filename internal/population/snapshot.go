package population

import (
	"sort"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Snapshot is an immutable view of the registered population.
// It implements facematch.Gallery and, when built with an index, facematch.CandidateSearcher.
type Snapshot struct {
	ids        []string
	embeddings []facematch.Embedding
	vectors    [][]float64
	dim        int
	ann        *facematch.ANNIndex
}

func newSnapshot(ids []string, embeddings []facematch.Embedding, withANN bool) *Snapshot {
	s := &Snapshot{
		ids:        ids,
		embeddings: embeddings,
		vectors:    make([][]float64, len(embeddings)),
	}
	for i, e := range embeddings {
		s.vectors[i] = e.Float64()
	}
	if len(embeddings) > 0 {
		s.dim = len(embeddings[0])
	}
	if withANN {
		s.ann = facematch.BuildANNIndex(embeddings)
	}
	return s
}

// Len returns the number of embeddings.
func (s *Snapshot) Len() int { return len(s.ids) }

// Dim returns the shared embedding length, 0 for an empty snapshot.
func (s *Snapshot) Dim() int { return s.dim }

// PersonID returns the identity owning embedding i.
func (s *Snapshot) PersonID(i int) string { return s.ids[i] }

// Vector returns embedding i as float64. Callers must not modify it.
func (s *Snapshot) Vector(i int) []float64 { return s.vectors[i] }

// Candidates returns ANN candidate positions, or nil when no index was built.
func (s *Snapshot) Candidates(query facematch.Embedding, k int) []int {
	if s.ann == nil {
		return nil
	}
	return s.ann.Search(query, k)
}

// Identities returns the sorted, deduplicated person-ids.
func (s *Snapshot) Identities() []string {
	seen := make(map[string]struct{}, len(s.ids))
	out := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of embeddings per identity.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int)
	for _, id := range s.ids {
		counts[id]++
	}
	return counts
}

// Data returns a copy of the pairs in registration order.
func (s *Snapshot) Data() *Data {
	d := &Data{
		Identities: make([]string, len(s.ids)),
		Embeddings: make([]facematch.Embedding, len(s.embeddings)),
	}
	copy(d.Identities, s.ids)
	for i, e := range s.embeddings {
		d.Embeddings[i] = e.Clone()
	}
	return d
}
