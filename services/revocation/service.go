package revocation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
)

var ErrStoreNotConfigured = errors.New("revocation store not configured")

type Service struct {
	store  Store
	logger *logging.Service

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewService(store Store, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

func (s *Service) RevokeToken(jti string, expiresAt time.Time) error {
	if s.store == nil {
		return ErrStoreNotConfigured
	}

	if err := s.store.RevokeToken(jti, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token by JTI: %w", err)
	}

	s.logger.Info("token revoked", zap.String("jti", jti), zap.Time("expires_at", expiresAt))
	return nil
}

func (s *Service) IsTokenRevoked(jti string) (bool, error) {
	if s.store == nil {
		return false, ErrStoreNotConfigured
	}

	revoked, err := s.store.IsRevoked(jti)
	if err != nil {
		return false, fmt.Errorf("failed to check JTI revocation status: %w", err)
	}
	return revoked, nil
}

func (s *Service) CleanupExpiredTokens() error {
	if s.store == nil {
		return ErrStoreNotConfigured
	}

	if err := s.store.CleanupExpiredTokens(); err != nil {
		return fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return nil
}

func (s *Service) StartCleanupWorker(interval time.Duration) {
	if s.store == nil || interval <= 0 || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.CleanupExpiredTokens(); err != nil {
					s.logger.Error("revocation cleanup worker failed", zap.Error(err))
				}
			case <-s.stop:
				return
			}
		}
	}()

	s.logger.Info("started revocation cleanup worker", zap.Duration("interval", interval))
}

func (s *Service) StopCleanupWorker() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}
