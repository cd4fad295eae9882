// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockAttendanceStore is an in-memory implementation of database.AttendanceWriter.
// The optional Users store is consulted to attach user ids.
type MockAttendanceStore struct {
	mu      sync.Mutex
	records []database.AttendanceRecord
	Users   *MockUserStore

	// Error injection
	HasError    error
	InsertError error
	ListError   error
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{}
}

// AddRecord adds a record directly, bypassing the window check
func (m *MockAttendanceStore) AddRecord(rec database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of all stored records
func (m *MockAttendanceStore) Records() []database.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.AttendanceRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MockAttendanceStore) hasLocked(name string, since, until time.Time) bool {
	for _, r := range m.records {
		if r.Name == name && r.Timestamp.After(since) && r.Timestamp.Before(until) {
			return true
		}
	}
	return false
}

// HasAttendanceBetween reports whether name has a record with since < timestamp < until
func (m *MockAttendanceStore) HasAttendanceBetween(ctx context.Context, name string, since, until time.Time) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasLocked(name, since, until), nil
}

// InsertAttendanceIfNoneWithin inserts rec unless the window or the id is already taken
func (m *MockAttendanceStore) InsertAttendanceIfNoneWithin(
	ctx context.Context, rec database.AttendanceRecord, window time.Duration,
) (bool, error) {
	if m.InsertError != nil {
		return false, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID == rec.ID {
			return false, nil
		}
	}
	if m.hasLocked(rec.Name, rec.Timestamp.Add(-window), rec.Timestamp.Add(window)) {
		return false, nil
	}

	if m.Users != nil {
		if u, _ := m.Users.GetUserByName(ctx, rec.Name); u != nil {
			id := u.ID
			rec.UserID = &id
		}
	}
	m.records = append(m.records, rec)
	return true, nil
}

// ListAttendance returns records for a date, oldest first
func (m *MockAttendanceStore) ListAttendance(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []database.AttendanceRecord
	for _, r := range m.records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// MockUserStore is an in-memory implementation of database.UserWriter
type MockUserStore struct {
	mu     sync.RWMutex
	users  map[string]*database.User
	nextID int64

	// Error injection
	GetError    error
	ListError   error
	UpsertError error
	DeleteError error
}

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*database.User), nextID: 1}
}

// GetUserByName returns nil when no user has that name
func (m *MockUserStore) GetUserByName(ctx context.Context, name string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[name]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// ListUsers returns all users ordered by name
func (m *MockUserStore) ListUsers(ctx context.Context) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpsertUser creates the user or updates email and department
func (m *MockUserStore) UpsertUser(ctx context.Context, user database.User) (*database.User, error) {
	if m.UpsertError != nil {
		return nil, m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[user.Name]; ok {
		u.Email = user.Email
		u.Department = user.Department
		cp := *u
		return &cp, nil
	}
	u := &database.User{
		ID:         m.nextID,
		Name:       user.Name,
		Email:      user.Email,
		Department: user.Department,
		CreatedAt:  time.Now(),
	}
	m.nextID++
	m.users[user.Name] = u
	cp := *u
	return &cp, nil
}

// DeleteUser removes the user by name
func (m *MockUserStore) DeleteUser(ctx context.Context, name string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[name]; !ok {
		return false, nil
	}
	delete(m.users, name)
	return true, nil
}

// MockPopulationStore is an in-memory implementation of database.PopulationWriter
type MockPopulationStore struct {
	mu   sync.Mutex
	rows []database.PopulationRow

	// Error injection
	LoadError    error
	ReplaceError error
}

// NewMockPopulationStore creates a new mock population store
func NewMockPopulationStore() *MockPopulationStore {
	return &MockPopulationStore{}
}

// LoadPopulation returns a copy of the stored rows
func (m *MockPopulationStore) LoadPopulation(ctx context.Context) ([]database.PopulationRow, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.PopulationRow, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// ReplacePopulation swaps the stored rows
func (m *MockPopulationStore) ReplacePopulation(ctx context.Context, rows []database.PopulationRow) error {
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make([]database.PopulationRow, len(rows))
	copy(m.rows, rows)
	return nil
}
