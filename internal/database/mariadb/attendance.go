package mariadb

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const lockTimeoutSeconds = 10

var errLockTimeout = errors.New("timed out waiting for attendance lock")

// AttendanceRepository provides MariaDB-backed attendance storage.
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new MariaDB attendance repository.
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// lockName fits the 64 character limit of GET_LOCK for any person name.
func lockName(name string) string {
	return fmt.Sprintf("attendance:%x", sha1.Sum([]byte(name)))
}

// HasAttendanceBetween reports whether name has a row with since < timestamp < until.
func (r *AttendanceRepository) HasAttendanceBetween(ctx context.Context, name string, since, until time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&attendanceModel{}).
		Where("name = ? AND `timestamp` > ? AND `timestamp` < ?", name, since, until).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check recent attendance: %w", err)
	}
	return count > 0, nil
}

// InsertAttendanceIfNoneWithin inserts rec unless the person already has a row less than
// window away from it. A named lock taken on a pinned connection serializes concurrent
// writers for one person and is released only after the transaction has committed.
func (r *AttendanceRepository) InsertAttendanceIfNoneWithin(
	ctx context.Context, rec database.AttendanceRecord, window time.Duration,
) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		lock := lockName(rec.Name)
		var got sql.NullInt64
		if err := conn.Raw("SELECT GET_LOCK(?, ?)", lock, lockTimeoutSeconds).Scan(&got).Error; err != nil {
			return fmt.Errorf("acquire attendance lock: %w", err)
		}
		if !got.Valid || got.Int64 != 1 {
			return errLockTimeout
		}
		// Released on the same session even if ctx is already done.
		defer conn.WithContext(context.Background()).Exec("SELECT RELEASE_LOCK(?)", lock)

		return conn.Transaction(func(tx *gorm.DB) error {
			var err error
			inserted, err = insertIfNoneWithin(tx, rec, window)
			return err
		})
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func insertIfNoneWithin(tx *gorm.DB, rec database.AttendanceRecord, window time.Duration) (bool, error) {
	var count int64
	err := tx.Model(&attendanceModel{}).
		Where("id = ? OR (name = ? AND `timestamp` > ? AND `timestamp` < ?)",
			rec.ID, rec.Name, rec.Timestamp.Add(-window), rec.Timestamp.Add(window)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check recent attendance: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	var users []userModel
	if err := tx.Where("name = ?", rec.Name).Limit(1).Find(&users).Error; err != nil {
		return false, fmt.Errorf("look up user: %w", err)
	}

	row := attendanceModel{
		ID:         rec.ID,
		Name:       rec.Name,
		Timestamp:  rec.Timestamp,
		Date:       rec.Date,
		Confidence: rec.Confidence,
	}
	if len(users) > 0 {
		row.UserID = &users[0].ID
	}
	if err := tx.Create(&row).Error; err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return true, nil
}

// ListAttendance returns all rows for a calendar date, oldest first.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	var rows []attendanceModel
	err := r.db.WithContext(ctx).Where("date = ?", date).Order("`timestamp`, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}

	records := make([]database.AttendanceRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}
