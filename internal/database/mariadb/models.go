package mariadb

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type userModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Name       string    `gorm:"size:255;not null;uniqueIndex"`
	Email      string    `gorm:"size:255;not null;default:''"`
	Department string    `gorm:"size:255;not null;default:''"`
	CreatedAt  time.Time `gorm:"type:datetime(6)"`
}

func (userModel) TableName() string {
	return "users"
}

func (m userModel) toUser() database.User {
	return database.User{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Department: m.Department,
		CreatedAt:  m.CreatedAt,
	}
}

type attendanceModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     *int64    `gorm:"index"`
	Name       string    `gorm:"size:255;not null;index:idx_attendance_name_timestamp,priority:1"`
	Timestamp  time.Time `gorm:"type:datetime(6);not null;index:idx_attendance_name_timestamp,priority:2"`
	Date       string    `gorm:"size:10;not null;index"`
	Confidence float64   `gorm:"not null"`
}

func (attendanceModel) TableName() string {
	return "attendance"
}

func (m attendanceModel) toRecord() database.AttendanceRecord {
	return database.AttendanceRecord{
		ID:         m.ID,
		UserID:     m.UserID,
		Name:       m.Name,
		Timestamp:  m.Timestamp,
		Date:       m.Date,
		Confidence: m.Confidence,
	}
}
