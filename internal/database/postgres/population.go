package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// PopulationRepository stores the registered face population in a pgvector column.
type PopulationRepository struct {
	pool *Pool
}

// NewPopulationRepository creates a new PostgreSQL population repository.
func NewPopulationRepository(pool *Pool) *PopulationRepository {
	return &PopulationRepository{pool: pool}
}

// LoadPopulation returns all rows in registration order.
func (r *PopulationRepository) LoadPopulation(ctx context.Context) ([]database.PopulationRow, error) {
	rows, err := r.pool.Query(ctx, "SELECT position, person_id, embedding FROM face_embeddings ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query face embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.PopulationRow
	for rows.Next() {
		var row database.PopulationRow
		var vec pgvector.Vector
		if err := rows.Scan(&row.Position, &row.PersonID, &vec); err != nil {
			return nil, fmt.Errorf("scan face embedding: %w", err)
		}
		row.Embedding = vec.Slice()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face embeddings: %w", err)
	}
	return out, nil
}

// ReplacePopulation swaps the stored population for rows in one transaction.
func (r *PopulationRepository) ReplacePopulation(ctx context.Context, rows []database.PopulationRow) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_embeddings"); err != nil {
		return fmt.Errorf("delete face embeddings: %w", err)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO face_embeddings (position, person_id, embedding, dim)
			VALUES ($1, $2, $3::vector, $4)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			vec := pgvector.NewVector(row.Embedding)
			if _, err := stmt.ExecContext(ctx, row.Position, row.PersonID, vec, len(row.Embedding)); err != nil {
				return fmt.Errorf("insert face embedding for %s: %w", row.PersonID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
