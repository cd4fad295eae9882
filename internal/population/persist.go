package population

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrCorrupt is returned by a Persister whose stored population cannot be decoded.
var ErrCorrupt = errors.New("population data is corrupt")

// Data is the persisted form of a population: two parallel collections.
type Data struct {
	Identities []string
	Embeddings []facematch.Embedding
}

func (d *Data) validate() error {
	if len(d.Identities) != len(d.Embeddings) {
		return fmt.Errorf("%w: %d identities but %d embeddings", ErrCorrupt, len(d.Identities), len(d.Embeddings))
	}
	for i, e := range d.Embeddings {
		if len(e) == 0 {
			return fmt.Errorf("%w: empty embedding at position %d", ErrCorrupt, i)
		}
		if len(e) != len(d.Embeddings[0]) {
			return fmt.Errorf("%w: embedding %d has %d values, expected %d", ErrCorrupt, i, len(e), len(d.Embeddings[0]))
		}
	}
	return nil
}

// Persister loads and saves a population.
// Load returns an error wrapping fs.ErrNotExist when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Data, error)
	Save(ctx context.Context, d *Data) error
}

// FilePersister stores the population as one gob file.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister for path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// fileFormat keeps the on-disk layout independent of facematch types.
type fileFormat struct {
	Identities []string
	Embeddings [][]float32
}

// Load reads and decodes the population file.
func (p *FilePersister) Load(_ context.Context) (*Data, error) {
	raw, err := os.ReadFile(p.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("read population file: %w", err)
	}

	var f fileFormat
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, p.path, err)
	}

	d := &Data{Identities: f.Identities, Embeddings: make([]facematch.Embedding, len(f.Embeddings))}
	for i, e := range f.Embeddings {
		d.Embeddings[i] = facematch.Embedding(e)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Save writes the population atomically: readers see the old or the new file, never a partial one.
func (p *FilePersister) Save(_ context.Context, d *Data) error {
	f := fileFormat{Identities: d.Identities, Embeddings: make([][]float32, len(d.Embeddings))}
	for i, e := range d.Embeddings {
		f.Embeddings[i] = []float32(e)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encode population: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create population directory: %w", err)
		}
	}
	if err := renameio.WriteFile(p.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write population file: %w", err)
	}
	return nil
}

// DatabasePersister stores the population through a database.PopulationWriter.
type DatabasePersister struct {
	store database.PopulationWriter
}

// NewDatabasePersister wraps a population repository.
func NewDatabasePersister(store database.PopulationWriter) *DatabasePersister {
	return &DatabasePersister{store: store}
}

// Load reads all rows in position order. An empty table is not an error.
func (p *DatabasePersister) Load(ctx context.Context) (*Data, error) {
	rows, err := p.store.LoadPopulation(ctx)
	if err != nil {
		return nil, fmt.Errorf("load population rows: %w", err)
	}

	d := &Data{
		Identities: make([]string, len(rows)),
		Embeddings: make([]facematch.Embedding, len(rows)),
	}
	for i, row := range rows {
		d.Identities[i] = row.PersonID
		d.Embeddings[i] = facematch.Embedding(row.Embedding)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Save replaces all rows.
func (p *DatabasePersister) Save(ctx context.Context, d *Data) error {
	rows := make([]database.PopulationRow, len(d.Identities))
	for i := range d.Identities {
		rows[i] = database.PopulationRow{
			Position:  i,
			PersonID:  d.Identities[i],
			Embedding: []float32(d.Embeddings[i]),
		}
	}
	if err := p.store.ReplacePopulation(ctx, rows); err != nil {
		return fmt.Errorf("replace population rows: %w", err)
	}
	return nil
}
