package database

import (
	"context"
	"time"
)

// AttendanceReader provides read-only access to the attendance log
type AttendanceReader interface {
	// HasAttendanceBetween reports whether name has a row with since < timestamp < until
	HasAttendanceBetween(ctx context.Context, name string, since, until time.Time) (bool, error)
	// ListAttendance returns all rows for a calendar date (YYYY-MM-DD), oldest first
	ListAttendance(ctx context.Context, date string) ([]AttendanceRecord, error)
}

// AttendanceWriter provides append access to the attendance log
type AttendanceWriter interface {
	AttendanceReader

	// InsertAttendanceIfNoneWithin inserts rec unless a row for rec.Name exists less than
	// window away from rec.Timestamp in either direction, or a row with the same ID exists.
	// The check and the insert are atomic per person. Returns whether a row was written.
	// UserID is resolved from the users table by name.
	InsertAttendanceIfNoneWithin(ctx context.Context, rec AttendanceRecord, window time.Duration) (bool, error)
}

// UserReader provides read-only access to the user directory
type UserReader interface {
	// GetUserByName returns nil when no user has that name
	GetUserByName(ctx context.Context, name string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// UserWriter provides write access to the user directory
type UserWriter interface {
	UserReader

	// UpsertUser creates the user or updates email and department of an existing one
	UpsertUser(ctx context.Context, u User) (*User, error)
	// DeleteUser removes the user by name, returns false when it did not exist
	DeleteUser(ctx context.Context, name string) (bool, error)
}

// PopulationReader loads the registered face population
type PopulationReader interface {
	LoadPopulation(ctx context.Context) ([]PopulationRow, error)
}

// PopulationWriter replaces the registered face population
type PopulationWriter interface {
	PopulationReader

	// ReplacePopulation swaps the stored population for rows in one transaction
	ReplacePopulation(ctx context.Context, rows []PopulationRow) error
}
