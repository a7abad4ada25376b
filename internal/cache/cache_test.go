package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", string(v))

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "portal:list:users:a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "portal:list:users:b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "portal:list:badges:a", []byte("3"), 0))

	require.NoError(t, m.DeletePrefix(ctx, "portal:list:users:"))

	_, ok, _ := m.Get(ctx, "portal:list:users:a")
	require.False(t, ok)
	_, ok, _ = m.Get(ctx, "portal:list:badges:a")
	require.True(t, ok)
}
