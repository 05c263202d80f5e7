package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewMemoryRevocations()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, r.Revoke(ctx, "jti-ignored", 0))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-ignored")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation lapses with the token")
	assert.Empty(t, r.revoked)
}

func TestMemoryRevocations_PrunesOnRevoke(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewMemoryRevocations()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "old", time.Second))
	now = now.Add(2 * time.Second)
	require.NoError(t, r.Revoke(ctx, "new", time.Minute))

	assert.NotContains(t, r.revoked, "old")
	assert.Contains(t, r.revoked, "new")
}
