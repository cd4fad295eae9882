package mariadb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// UserRepository provides MariaDB-backed directory storage.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new MariaDB user repository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserByName returns nil when no user has that name.
func (r *UserRepository) GetUserByName(ctx context.Context, name string) (*database.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u := m.toUser()
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]database.User, error) {
	var rows []userModel
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	users := make([]database.User, len(rows))
	for i, m := range rows {
		users[i] = m.toUser()
	}
	return users, nil
}

// UpsertUser creates the user or updates email and department of an existing one.
func (r *UserRepository) UpsertUser(ctx context.Context, user database.User) (*database.User, error) {
	m := userModel{Name: user.Name, Email: user.Email, Department: user.Department}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "department"}),
	}).Create(&m).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return r.GetUserByName(ctx, user.Name)
}

// DeleteUser removes the user by name.
func (r *UserRepository) DeleteUser(ctx context.Context, name string) (bool, error) {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&userModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
