package smscode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrCodeNotFound = errors.New("verification code not found")

// Store persists verification codes. Lookups only ever return unused codes.
type Store interface {
	CountRecent(ctx context.Context, phone string, since time.Time) (int64, error)
	FindUnused(ctx context.Context, phone string, scene Scene) (*VerificationCode, error)
	FindByValue(ctx context.Context, phone, code string, scene Scene) (*VerificationCode, error)
	Insert(ctx context.Context, record *VerificationCode) error
	ReplaceUnused(ctx context.Context, record *VerificationCode) error
	MarkUsed(ctx context.Context, id uint, usedBy string, at time.Time) (bool, error)
	DeleteUnused(ctx context.Context, phone string, scene Scene) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CountRecent(ctx context.Context, phone string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VerificationCode{}).
		Where("phone = ? AND created_at >= ?", phone, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent codes: %w", err)
	}
	return count, nil
}

func (s *GormStore) FindUnused(ctx context.Context, phone string, scene Scene) (*VerificationCode, error) {
	return s.first(s.db.WithContext(ctx).
		Where("phone = ? AND scene = ? AND used = ?", phone, scene, false))
}

func (s *GormStore) FindByValue(ctx context.Context, phone, code string, scene Scene) (*VerificationCode, error) {
	return s.first(s.db.WithContext(ctx).
		Where("phone = ? AND code = ? AND scene = ? AND used = ?", phone, code, scene, false))
}

func (s *GormStore) first(query *gorm.DB) (*VerificationCode, error) {
	var record VerificationCode
	if err := query.Order("created_at DESC").Order("id DESC").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to query verification code: %w", err)
	}
	return &record, nil
}

func (s *GormStore) Insert(ctx context.Context, record *VerificationCode) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to insert verification code: %w", err)
	}
	return nil
}

// ReplaceUnused invalidates every unused code for the record's phone and
// scene and inserts the record, in one transaction.
func (s *GormStore) ReplaceUnused(ctx context.Context, record *VerificationCode) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("phone = ? AND scene = ? AND used = ?", record.Phone, record.Scene, false).
			Delete(&VerificationCode{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace verification code: %w", err)
	}
	return nil
}

// MarkUsed flips used from false to true. It reports false when the record
// was already consumed or no longer exists.
func (s *GormStore) MarkUsed(ctx context.Context, id uint, usedBy string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&VerificationCode{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{
			"used":    true,
			"used_at": at,
			"used_by": usedBy,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark verification code used: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) DeleteUnused(ctx context.Context, phone string, scene Scene) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("phone = ? AND scene = ? AND used = ?", phone, scene, false).
		Delete(&VerificationCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete unused codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&VerificationCode{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}

// DeleteExpired removes unused codes that expired before the given time.
// Consumed codes are kept as an audit trail.
func (s *GormStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("used = ? AND expires_at < ?", false, before).
		Delete(&VerificationCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
