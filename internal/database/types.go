package database

import (
	"time"
)

// AttendanceRecord is one row of the append-only attendance log.
type AttendanceRecord struct {
	ID         string    // event UUID
	UserID     *int64    // directory user id, nil when the person has no users row
	Name       string    // person-id
	Timestamp  time.Time
	Date       string // YYYY-MM-DD in local time
	Confidence float64
}

// User is a directory row. Name is unique and equals the person-id used for face data.
type User struct {
	ID         int64
	Name       string
	Email      string
	Department string
	CreatedAt  time.Time
}

// PopulationRow is one registered (person-id, embedding) pair.
// Position preserves insertion order, which decides match ties.
type PopulationRow struct {
	Position  int
	PersonID  string
	Embedding []float32
}
