package ratelimit

import (
	"context"
	"time"

	"go.uber.org/fx"
)

const cleanupInterval = time.Minute

func ProvideMemoryStore(lc fx.Lifecycle) *MemoryStore {
	store := NewMemoryStore()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			store.StartCleanup(cleanupInterval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			store.Stop()
			return nil
		},
	})

	return store
}

var Module = fx.Options(
	fx.Provide(ProvideMemoryStore),
)
