package smscode

import (
	"context"
	"sync"
	"time"

	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
)

// Sweeper periodically deletes expired unused codes. Expired codes are also
// rejected on lookup, so sweeping only reclaims storage.
type Sweeper struct {
	store    Store
	interval time.Duration
	clock    func() time.Time
	logger   *logging.Service

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSweeper(store Store, interval time.Duration, logger *logging.Service) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    time.Now,
		logger:   logger,
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpired(ctx, s.clock().UTC())
	if err != nil {
		s.logger.Error("failed to sweep expired verification codes", zap.Error(err))
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired verification codes swept", zap.Int64("codes_removed", removed))
	}
	return removed, nil
}

func (s *Sweeper) Start() {
	if s.interval <= 0 || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = s.SweepOnce(context.Background())
			case <-s.stop:
				return
			}
		}
	}()

	s.logger.Info("started verification code sweeper", zap.Duration("interval", s.interval))
}

func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}
