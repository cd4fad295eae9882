// Package attendance records idempotent attendance events in the durable store.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

var (
	// ErrDuplicate is returned when the person already has an event inside the duplicate window.
	ErrDuplicate = errors.New("attendance already recorded within window")
	// ErrDurability wraps failures of the durable store.
	ErrDurability = errors.New("attendance store unavailable")
)

// DateLayout is the calendar date format of events and CSV file names.
const DateLayout = "2006-01-02"

// Event is one accepted attendance.
type Event struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	At         time.Time `json:"at"`
	Confidence float64   `json:"confidence"`
	Date       string    `json:"date"`
}

// NewEvent creates an event with a fresh id. Date is derived from at in local time.
func NewEvent(personID string, at time.Time, confidence float64) Event {
	return Event{
		ID:         uuid.NewString(),
		PersonID:   personID,
		At:         at,
		Confidence: confidence,
		Date:       at.In(time.Local).Format(DateLayout),
	}
}

// Service is the attendance recorder.
type Service struct {
	store  database.AttendanceWriter
	window time.Duration
	mirror *CSVLog
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMirror appends every recorded event to per-day CSV files.
func WithMirror(m *CSVLog) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// NewService creates a recorder refusing a second event per person inside window.
func NewService(store database.AttendanceWriter, window time.Duration, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		window: window,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the duplicate window.
func (s *Service) Window() time.Duration {
	return s.window
}

// HasRecentEvent reports whether personID has a durable event less than window away from at.
func (s *Service) HasRecentEvent(ctx context.Context, personID string, at time.Time, window time.Duration) (bool, error) {
	ok, err := s.store.HasAttendanceBetween(ctx, personID, at.Add(-window), at.Add(window))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDurability, err)
	}
	return ok, nil
}

// Record inserts an event for personID at the given instant unless one already
// exists in (at - window, at + window). It returns ErrDuplicate in that case.
func (s *Service) Record(ctx context.Context, personID string, at time.Time, confidence float64) (Event, error) {
	ev := NewEvent(personID, at, confidence)
	if err := s.insert(ctx, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Replay inserts a previously failed event, keeping its id and instant.
// Replaying an event that already reached the store, or one that a later
// event inside the window superseded, returns ErrDuplicate.
func (s *Service) Replay(ctx context.Context, ev Event) error {
	return s.insert(ctx, ev)
}

func (s *Service) insert(ctx context.Context, ev Event) error {
	rec := database.AttendanceRecord{
		ID:         ev.ID,
		Name:       ev.PersonID,
		Timestamp:  ev.At,
		Date:       ev.Date,
		Confidence: ev.Confidence,
	}

	inserted, err := s.store.InsertAttendanceIfNoneWithin(ctx, rec, s.window)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDurability, err)
	}
	if !inserted {
		return ErrDuplicate
	}

	if s.mirror != nil {
		if err := s.mirror.Append(ev); err != nil {
			s.logger.Warn("failed to mirror attendance to CSV",
				zap.String("person", ev.PersonID), zap.String("event_id", ev.ID), zap.Error(err))
		}
	}

	s.logger.Info("attendance recorded",
		zap.String("person", ev.PersonID),
		zap.String("event_id", ev.ID),
		zap.Float64("confidence", logging.Confidence(ev.Confidence)))
	return nil
}
