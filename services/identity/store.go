package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicatePhone = errors.New("a user with this phone already exists")
)

type Store interface {
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	TouchLogin(ctx context.Context, id, ip string, at time.Time) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return s.first(s.db.WithContext(ctx).Where("phone = ?", phone))
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *GormStore) first(query *gorm.DB) (*User, error) {
	var user User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A unique index violation on phone is reported
// as ErrDuplicatePhone so callers can re-read instead of failing.
func (s *GormStore) Create(ctx context.Context, user *User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePhone
	}
	return fmt.Errorf("failed to create user: %w", err)
}

func (s *GormStore) TouchLogin(ctx context.Context, id, ip string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"last_login_at": at,
		"last_login_ip": ip,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update login info: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
