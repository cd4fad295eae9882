package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// UserRepository provides PostgreSQL-backed directory storage.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = "id, name, email, department, created_at"

func scanUser(scanner interface{ Scan(...any) error }) (database.User, error) {
	var u database.User
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.Department, &u.CreatedAt)
	return u, err
}

// GetUserByName returns nil when no user has that name.
func (r *UserRepository) GetUserByName(ctx context.Context, name string) (*database.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE name = $1", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]database.User, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []database.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpsertUser creates the user or updates email and department of an existing one.
func (r *UserRepository) UpsertUser(ctx context.Context, user database.User) (*database.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, department)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET email = EXCLUDED.email, department = EXCLUDED.department
		RETURNING `+userColumns,
		user.Name, user.Email, user.Department))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

// DeleteUser removes the user by name.
func (r *UserRepository) DeleteUser(ctx context.Context, name string) (bool, error) {
	res, err := r.pool.Exec(ctx, "DELETE FROM users WHERE name = $1", name)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return n > 0, nil
}
