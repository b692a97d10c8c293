package smscode

import (
	"context"
	"errors"
	"time"
)

var ErrRateLimited = errors.New("verification code requested too frequently")

// RateLimiter enforces a minimum interval between code issuances per phone,
// across all scenes. The window is derived from stored code records.
type RateLimiter struct {
	store  Store
	window time.Duration
}

func NewRateLimiter(store Store, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, phone string, now time.Time) error {
	if r.window <= 0 {
		return nil
	}

	count, err := r.store.CountRecent(ctx, phone, now.Add(-r.window))
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRateLimited
	}
	return nil
}
