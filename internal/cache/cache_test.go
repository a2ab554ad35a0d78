package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/matrix"
)

func TestKey(t *testing.T) {
	cfg := analysis.DefaultConfig()
	sparse := cfg
	sparse.Backend = matrix.BackendSparse

	k := Key("solve", "R1 1 0 1", cfg)
	assert.Equal(t, k, Key("solve", "R1 1 0 1", cfg))
	assert.NotEqual(t, k, Key("solve", "R1 1 0 2", cfg))
	assert.NotEqual(t, k, Key("solve", "R1 1 0 1", sparse))
	assert.NotEqual(t, k, Key("sweep", "R1 1 0 1", cfg))
	assert.NotEqual(t, Key("sweep", "x", cfg, "V1", 0.0), Key("sweep", "x", cfg, "V1", 1.0))
	assert.Contains(t, k, "dcop:solve:")
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("result")
	require.NoError(t, m.Set(ctx, "a", value, 0))
	value[0] = 'X'

	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("result"), got)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	m := NewMemory(0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))

	now = now.Add(59 * time.Second)
	_, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemoryBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("3"), 0))
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Set(ctx, "c", []byte("4"), 0))
	assert.Equal(t, 2, m.Len())

	got, ok, _ := m.Get(ctx, "c")
	require.True(t, ok)
	assert.Equal(t, []byte("4"), got)
}

func TestNewRedis(t *testing.T) {
	r, err := NewRedis(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = NewRedis(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
