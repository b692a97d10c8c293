package revocation

import (
	"sync"
	"time"

	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevokedToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	JTI       string    `json:"jti" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

type Store interface {
	RevokeToken(jti string, expiresAt time.Time) error
	IsRevoked(jti string) (bool, error)
	CleanupExpiredTokens() error
	LoadFromDatabase() error
}

// MemoryStore keeps revoked JTIs in memory. When a database is attached every
// revocation is written through so the deny list survives restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
	db     *gorm.DB
	logger *logging.Service
	clock  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithDB(nil, nil)
}

func NewMemoryStoreWithDB(db *gorm.DB, logger *logging.Service) *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		db:     db,
		logger: logger,
		clock:  time.Now,
	}
}

func (m *MemoryStore) RevokeToken(jti string, expiresAt time.Time) error {
	m.mu.Lock()
	m.tokens[jti] = expiresAt
	m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	record := RevokedToken{JTI: jti, ExpiresAt: expiresAt}
	if err := m.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		m.logger.Error("failed to persist revoked token", zap.String("jti", jti), zap.Error(err))
		return err
	}
	return nil
}

func (m *MemoryStore) IsRevoked(jti string) (bool, error) {
	m.mu.RLock()
	expiresAt, exists := m.tokens[jti]
	m.mu.RUnlock()

	if !exists {
		return false, nil
	}

	if m.clock().After(expiresAt) {
		m.mu.Lock()
		delete(m.tokens, jti)
		m.mu.Unlock()
		return false, nil
	}

	return true, nil
}

func (m *MemoryStore) CleanupExpiredTokens() error {
	now := m.clock()

	m.mu.Lock()
	removed := 0
	for jti, expiresAt := range m.tokens {
		if now.After(expiresAt) {
			delete(m.tokens, jti)
			removed++
		}
	}
	m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Where("expires_at <= ?", now).Delete(&RevokedToken{}).Error; err != nil {
			return err
		}
	}

	if removed > 0 {
		m.logger.Info("cleaned up expired revoked tokens", zap.Int("expired_count", removed))
	}
	return nil
}

func (m *MemoryStore) LoadFromDatabase() error {
	if m.db == nil {
		return nil
	}

	var revoked []RevokedToken
	if err := m.db.Where("expires_at > ?", m.clock()).Find(&revoked).Error; err != nil {
		m.logger.Error("failed to load revoked tokens from database", zap.Error(err))
		return err
	}

	m.mu.Lock()
	for _, token := range revoked {
		m.tokens[token.JTI] = token.ExpiresAt
	}
	m.mu.Unlock()

	m.logger.Info("revoked tokens loaded from database", zap.Int("loaded_count", len(revoked)))
	return nil
}
