package population

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

type failingPersister struct {
	saveErr error
	saves   int
}

func (p *failingPersister) Load(context.Context) (*Data, error) { return &Data{}, nil }

func (p *failingPersister) Save(context.Context, *Data) error {
	p.saves++
	return p.saveErr
}

func TestStore_AddAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)

	if err := s.Add(ctx, "  alice  ", []facematch.Embedding{{0, 0, 0}, {0.1, 0, 0}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := s.Add(ctx, "bob", []facematch.Embedding{{1, 1, 1}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	snap := s.Snapshot()
	if snap.Len() != 3 {
		t.Fatalf("expected 3 embeddings, got %d", snap.Len())
	}
	if snap.Dim() != 3 {
		t.Errorf("expected dim 3, got %d", snap.Dim())
	}
	if snap.PersonID(0) != "alice" {
		t.Errorf("expected normalized id alice, got %q", snap.PersonID(0))
	}

	ids := s.KnownIdentities()
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("KnownIdentities() = %v, want [alice bob]", ids)
	}
	if c := s.Counts(); c["alice"] != 2 || c["bob"] != 1 {
		t.Errorf("Counts() = %v", c)
	}
}

func TestStore_AddValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	if err := s.Add(ctx, "alice", []facematch.Embedding{{0, 0, 0}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	tests := []struct {
		name    string
		id      string
		embs    []facematch.Embedding
		wantErr error
	}{
		{"empty list", "bob", nil, ErrNoEmbeddings},
		{"empty id", "   ", []facematch.Embedding{{1, 1, 1}}, ErrInvalidPersonID},
		{"reserved id", facematch.Unknown, []facematch.Embedding{{1, 1, 1}}, ErrInvalidPersonID},
		{"wrong dimension", "bob", []facematch.Embedding{{1, 1}}, ErrDimensionMismatch},
		{"mixed dimensions", "bob", []facematch.Embedding{{1, 1, 1}, {1, 1}}, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(ctx, tt.id, tt.embs)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if s.Snapshot().Len() != 1 {
		t.Errorf("rejected adds must not change the population, got %d embeddings", s.Snapshot().Len())
	}
}

func TestStore_SnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	emb := facematch.Embedding{0, 0}
	if err := s.Add(ctx, "alice", []facematch.Embedding{emb}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	before := s.Snapshot()
	emb[0] = 42 // caller mutation must not leak in

	if err := s.Add(ctx, "bob", []facematch.Embedding{{1, 1}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if before.Len() != 1 {
		t.Errorf("old snapshot changed: len %d", before.Len())
	}
	if before.Vector(0)[0] != 0 {
		t.Errorf("snapshot shares caller memory: %v", before.Vector(0))
	}
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}, {0.1, 0}})
	_ = s.Add(ctx, "bob", []facematch.Embedding{{1, 1}})

	n, err := s.Remove(ctx, "alice")
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Remove() = %d, want 2", n)
	}

	n, err = s.Remove(ctx, "carol")
	if err != nil || n != 0 {
		t.Errorf("Remove(unknown) = %d, %v, want 0, nil", n, err)
	}

	ids := s.KnownIdentities()
	if len(ids) != 1 || ids[0] != "bob" {
		t.Errorf("KnownIdentities() = %v, want [bob]", ids)
	}

	// A removed identity is no longer matched.
	res, err := facematch.NewEngine(0.6).Match(s.Snapshot(), facematch.Embedding{0, 0})
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	if !res.IsUnknown() {
		t.Errorf("expected Unknown after removal, got %q", res.PersonID)
	}
}

func TestStore_RemoveLastIdentityResetsDimension(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}})
	_, _ = s.Remove(ctx, "alice")

	if err := s.Add(ctx, "bob", []facematch.Embedding{{1, 1, 1}}); err != nil {
		t.Errorf("empty population must accept a new dimension, got %v", err)
	}
}

func TestStore_Replace(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{}
	s := NewStore(p, nil)
	_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}, {0.1, 0}})
	_ = s.Add(ctx, "bob", []facematch.Embedding{{1, 1}})

	n, err := s.Replace(ctx, "alice", []facematch.Embedding{{0.5, 0.5}})
	if err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Replace() = %d, want 2", n)
	}
	if c := s.Counts(); c["alice"] != 1 || c["bob"] != 1 {
		t.Errorf("Counts() = %v", c)
	}
	if p.saves != 3 {
		t.Errorf("expected 3 saves, got %d", p.saves)
	}

	n, err = s.Replace(ctx, "carol", []facematch.Embedding{{2, 2}})
	if err != nil || n != 0 {
		t.Errorf("Replace(new identity) = %d, %v, want 0, nil", n, err)
	}
}

func TestStore_ReplaceRejectedKeepsOldEmbeddings(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{}
	s := NewStore(p, nil)
	_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}})
	_ = s.Add(ctx, "bob", []facematch.Embedding{{1, 1}})
	before := s.Snapshot()

	_, err := s.Replace(ctx, "alice", []facematch.Embedding{{0, 0, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Snapshot() != before {
		t.Error("rejected replace must not publish a new snapshot")
	}
	if c := s.Counts(); c["alice"] != 1 {
		t.Errorf("alice lost embeddings: %v", c)
	}
	if p.saves != 2 {
		t.Errorf("rejected replace must not save, got %d saves", p.saves)
	}

	if _, err := s.Replace(ctx, "alice", nil); !errors.Is(err, ErrNoEmbeddings) {
		t.Errorf("expected ErrNoEmbeddings, got %v", err)
	}
}

func TestStore_ReplaceSoleIdentityChangesDimension(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}})

	if _, err := s.Replace(ctx, "alice", []facematch.Embedding{{0, 0, 0}}); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if d := s.Snapshot().Dim(); d != 3 {
		t.Errorf("expected dim 3, got %d", d)
	}
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{saveErr: errors.New("disk full")}
	s := NewStore(p, nil)

	err := s.Add(ctx, "alice", []facematch.Embedding{{0, 0}})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if s.Snapshot().Len() != 1 {
		t.Errorf("expected embedding to stay in memory")
	}

	p.saveErr = nil
	if err := s.Save(ctx); err != nil {
		t.Errorf("Save() retry error: %v", err)
	}
	if p.saves != 2 {
		t.Errorf("expected 2 save attempts, got %d", p.saves)
	}
}

func TestStore_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "models", "face_encodings.gob")

	s := NewStore(NewFilePersister(path), nil)
	embs := []facematch.Embedding{{0.123456789, -1.5, 3.25}, {1e-7, 0, -0}}
	if err := s.Add(ctx, "alice", embs); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := s.Add(ctx, "bob", []facematch.Embedding{{9, 9, 9}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	loaded := NewStore(NewFilePersister(path), nil)
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	snap := loaded.Snapshot()
	if snap.Len() != 3 {
		t.Fatalf("expected 3 embeddings, got %d", snap.Len())
	}
	want := []string{"alice", "alice", "bob"}
	for i, id := range want {
		if snap.PersonID(i) != id {
			t.Errorf("position %d: got %q, want %q", i, snap.PersonID(i), id)
		}
	}
	for i, e := range embs {
		for j := range e {
			if float32(snap.Vector(i)[j]) != e[j] {
				t.Errorf("embedding %d not round-tripped exactly: %v vs %v", i, snap.Vector(i), e)
			}
		}
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(NewFilePersister(filepath.Join(t.TempDir(), "absent.gob")), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Snapshot().Len() != 0 {
		t.Error("expected empty population")
	}
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.gob")
	if err := os.WriteFile(path, []byte("definitely not gob"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(NewFilePersister(path), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Snapshot().Len() != 0 {
		t.Error("expected empty population")
	}
}

func TestStore_DatabasePersister(t *testing.T) {
	ctx := context.Background()
	db := mock.NewMockPopulationStore()

	s := NewStore(NewDatabasePersister(db), nil)
	if err := s.Add(ctx, "alice", []facematch.Embedding{{0.5, 0.25}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	rows, _ := db.LoadPopulation(ctx)
	if len(rows) != 1 || rows[0].PersonID != "alice" || rows[0].Position != 0 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	loaded := NewStore(NewDatabasePersister(db), nil)
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Snapshot().Len() != 1 {
		t.Errorf("expected 1 embedding, got %d", loaded.Snapshot().Len())
	}
}

func TestStore_DatabaseLoadError(t *testing.T) {
	db := mock.NewMockPopulationStore()
	db.LoadError = errors.New("connection refused")

	s := NewStore(NewDatabasePersister(db), nil)
	if err := s.Load(context.Background()); err == nil {
		t.Error("expected backend error to be returned")
	}
}

func TestStore_WithANNIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil, WithANNIndex(true))
	_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}})
	_ = s.Add(ctx, "bob", []facematch.Embedding{{10, 10}})

	engine := facematch.NewEngine(0.6, facematch.WithCandidateLimit(1))
	res, err := engine.Match(s.Snapshot(), facematch.Embedding{10, 10.1})
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	if res.PersonID != "bob" {
		t.Errorf("PersonID = %q, want bob", res.PersonID)
	}
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	engine := facematch.NewEngine(0.6)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Add(ctx, "alice", []facematch.Embedding{{0, 0}})
				_, _ = s.Remove(ctx, "alice")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := s.Snapshot()
				if snap.Len() > 0 && snap.Dim() != 2 {
					t.Errorf("partial snapshot observed: dim %d", snap.Dim())
				}
				_, _ = engine.Match(snap, facematch.Embedding{0, 0})
			}
		}()
	}
	wg.Wait()
}
