// Package population holds the registered (person-id, embedding) pairs
// and publishes immutable snapshots of them for matching.
package population

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

var (
	// ErrNoEmbeddings is returned by Add when the embedding list is empty.
	ErrNoEmbeddings = errors.New("no embeddings supplied")
	// ErrInvalidPersonID is returned for an empty or reserved person-id.
	ErrInvalidPersonID = errors.New("invalid person id")
	// ErrDimensionMismatch is returned when embeddings disagree in length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrPersist wraps failures of the configured Persister.
	ErrPersist = errors.New("failed to persist population")
)

// Store is the registered population. Reads go through Snapshot and never block;
// writers are serialized and publish a new snapshot when done.
type Store struct {
	persister Persister
	logger    *zap.Logger
	withANN   bool

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithANNIndex builds an approximate nearest-neighbor index with every snapshot.
func WithANNIndex(enabled bool) Option {
	return func(s *Store) {
		s.withANN = enabled
	}
}

// NewStore creates an empty store. persister may be nil for a memory-only store.
func NewStore(persister Persister, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{persister: persister, logger: logging.OrNop(logger)}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(newSnapshot(nil, nil, false))
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Load replaces the in-memory population with the persisted one.
// A missing or corrupt population is logged and leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	d, err := s.persister.Load(ctx)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("no saved population, starting empty")
		d = &Data{}
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn("saved population is unreadable, starting empty", zap.Error(err))
		d = &Data{}
	case err != nil:
		return fmt.Errorf("load population: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Store(newSnapshot(d.Identities, d.Embeddings, s.withANN))

	s.logger.Info("population loaded",
		zap.Int("embeddings", len(d.Identities)),
		zap.Int("identities", len(s.Snapshot().Identities())))
	return nil
}

// Add appends embeddings for personID and persists the population.
// On a persistence failure the embeddings stay added and the error wraps ErrPersist.
func (s *Store) Add(ctx context.Context, personID string, embeddings []facematch.Embedding) error {
	_, err := s.put(ctx, personID, embeddings, false)
	return err
}

// Replace swaps every embedding of personID for embeddings and persists the population.
// Nothing changes when the new embeddings are rejected. It returns how many were replaced.
func (s *Store) Replace(ctx context.Context, personID string, embeddings []facematch.Embedding) (int, error) {
	return s.put(ctx, personID, embeddings, true)
}

func (s *Store) put(ctx context.Context, personID string, embeddings []facematch.Embedding, replace bool) (int, error) {
	personID = facematch.NormalizePersonID(personID)
	if personID == "" || personID == facematch.Unknown {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPersonID, personID)
	}
	if len(embeddings) == 0 {
		return 0, ErrNoEmbeddings
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	ids := make([]string, 0, cur.Len()+len(embeddings))
	embs := make([]facematch.Embedding, 0, cur.Len()+len(embeddings))
	for i, id := range cur.ids {
		if replace && id == personID {
			continue
		}
		ids = append(ids, id)
		embs = append(embs, cur.embeddings[i])
	}
	removed := cur.Len() - len(ids)

	dim := len(embeddings[0])
	if len(embs) > 0 {
		dim = len(embs[0])
	}
	for i, e := range embeddings {
		if len(e) == 0 || len(e) != dim {
			return 0, fmt.Errorf("%w: embedding %d has %d values, expected %d", ErrDimensionMismatch, i, len(e), dim)
		}
	}

	for _, e := range embeddings {
		ids = append(ids, personID)
		embs = append(embs, e.Clone())
	}

	next := newSnapshot(ids, embs, s.withANN)
	s.snap.Store(next)

	s.logger.Debug("embeddings added", zap.String("person", personID),
		zap.Int("count", len(embeddings)), zap.Int("replaced", removed))
	return removed, s.saveLocked(ctx, next)
}

// Remove deletes every embedding of personID and returns how many were removed.
// Removing an unknown identity is not an error.
func (s *Store) Remove(ctx context.Context, personID string) (int, error) {
	personID = facematch.NormalizePersonID(personID)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	ids := make([]string, 0, cur.Len())
	embs := make([]facematch.Embedding, 0, cur.Len())
	for i, id := range cur.ids {
		if id == personID {
			continue
		}
		ids = append(ids, id)
		embs = append(embs, cur.embeddings[i])
	}

	removed := cur.Len() - len(ids)
	if removed == 0 {
		return 0, nil
	}

	next := newSnapshot(ids, embs, s.withANN)
	s.snap.Store(next)

	s.logger.Debug("embeddings removed", zap.String("person", personID), zap.Int("count", removed))
	return removed, s.saveLocked(ctx, next)
}

// KnownIdentities returns the sorted, deduplicated person-ids with at least one embedding.
func (s *Store) KnownIdentities() []string {
	return s.Snapshot().Identities()
}

// Counts returns the number of embeddings per identity.
func (s *Store) Counts() map[string]int {
	return s.Snapshot().Counts()
}

// Save persists the current snapshot, e.g. to retry after an ErrPersist.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, s.snap.Load())
}

func (s *Store) saveLocked(ctx context.Context, snap *Snapshot) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, snap.Data()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
