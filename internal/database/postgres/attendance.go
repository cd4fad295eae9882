package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// HasAttendanceBetween reports whether name has a row with since < timestamp < until.
func (r *AttendanceRepository) HasAttendanceBetween(ctx context.Context, name string, since, until time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance
			WHERE name = $1 AND timestamp > $2 AND timestamp < $3
		)
	`, name, since, until).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent attendance: %w", err)
	}
	return exists, nil
}

// InsertAttendanceIfNoneWithin inserts rec unless the person already has a row less than
// window away from it. A transaction-scoped advisory lock keyed on the name serializes
// concurrent writers for one person.
func (r *AttendanceRepository) InsertAttendanceIfNoneWithin(
	ctx context.Context, rec database.AttendanceRecord, window time.Duration,
) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", rec.Name); err != nil {
		return false, fmt.Errorf("acquire attendance lock: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance
			WHERE id = $1 OR (name = $2 AND timestamp > $3 AND timestamp < $4)
		)
	`, rec.ID, rec.Name, rec.Timestamp.Add(-window), rec.Timestamp.Add(window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent attendance: %w", err)
	}
	if exists {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance (id, user_id, name, timestamp, date, confidence)
		VALUES ($1, (SELECT id FROM users WHERE name = $2), $2, $3, $4::date, $5)
	`, rec.ID, rec.Name, rec.Timestamp, rec.Date, rec.Confidence)
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

// ListAttendance returns all rows for a calendar date, oldest first.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, timestamp, to_char(date, 'YYYY-MM-DD'), confidence
		FROM attendance
		WHERE date = $1::date
		ORDER BY timestamp, id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.Timestamp, &rec.Date, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
