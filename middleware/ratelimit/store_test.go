package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.clock = func() time.Time { return now }

	count, reset := store.Increment("k", time.Minute)
	assert.Equal(t, 1, count)
	assert.Equal(t, now.Add(time.Minute), reset)

	count, reset = store.Increment("k", time.Minute)
	assert.Equal(t, 2, count)
	assert.Equal(t, now.Add(time.Minute), reset, "window does not slide")

	now = now.Add(time.Minute)
	count, _ = store.Increment("k", time.Minute)
	assert.Equal(t, 1, count, "new window after reset time")

	store.Reset("k")
	assert.Zero(t, store.Len())

	store.Increment("a", time.Second)
	store.Increment("b", time.Hour)
	now = now.Add(2 * time.Second)
	store.purge()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStore()
	store.StartCleanup(time.Millisecond)
	store.Increment("k", time.Nanosecond)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	store.Stop()
	store.Stop()
}
