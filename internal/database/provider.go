package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// Backend groups the repositories of one opened database.
// Population is nil when the driver cannot store embeddings.
type Backend struct {
	Attendance AttendanceWriter
	Users      UserWriter
	Population PopulationWriter
	Close      func() error
}

// Opener connects to a database and runs its migrations.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (*Backend, error)

var (
	openers   = make(map[string]Opener)
	openersMu sync.RWMutex
)

// RegisterBackend registers an Opener for a DATABASE_DRIVER value.
// This is called by the driver packages to avoid import cycles.
func RegisterBackend(driver string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// Drivers returns the registered driver names.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects using the backend registered for cfg.Driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required: set DATABASE_URL")
	}

	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %q not registered (available: %v)", cfg.Driver, Drivers())
	}

	return open(ctx, cfg)
}
