package revocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/phoneauth/testutils"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.RevokeToken("jti-1", now.Add(time.Hour)))
	require.NoError(t, store.RevokeToken("jti-expired", now.Add(-time.Second)))

	revoked, err := store.IsRevoked("jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked("jti-expired")
	require.NoError(t, err)
	assert.False(t, revoked, "expired revocations no longer apply")

	revoked, err = store.IsRevoked("unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryStore_Persistence(t *testing.T) {
	db := testutils.SetupTestDB(t, &RevokedToken{})
	now := time.Now()

	first := NewMemoryStoreWithDB(db, nil)
	require.NoError(t, first.RevokeToken("jti-1", now.Add(time.Hour)))
	require.NoError(t, first.RevokeToken("jti-1", now.Add(time.Hour)), "revoking twice is idempotent")
	require.NoError(t, first.RevokeToken("jti-old", now.Add(-time.Hour)))

	restarted := NewMemoryStoreWithDB(db, nil)
	require.NoError(t, restarted.LoadFromDatabase())

	revoked, err := restarted.IsRevoked("jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, restarted.CleanupExpiredTokens())
	var count int64
	require.NoError(t, db.Model(&RevokedToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestService(t *testing.T) {
	service := NewService(NewMemoryStore(), nil)

	require.NoError(t, service.RevokeToken("jti-1", time.Now().Add(time.Hour)))

	revoked, err := service.IsTokenRevoked("jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, service.CleanupExpiredTokens())

	service.StartCleanupWorker(time.Hour)
	service.StopCleanupWorker()
}

func TestService_NoStore(t *testing.T) {
	service := NewService(nil, nil)

	assert.ErrorIs(t, service.RevokeToken("jti", time.Now()), ErrStoreNotConfigured)
	_, err := service.IsTokenRevoked("jti")
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	assert.ErrorIs(t, service.CleanupExpiredTokens(), ErrStoreNotConfigured)
}
