package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_Unreachable(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}, nil)
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "token", "abc", time.Minute))

	val, err := manager.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", val)

	// TTL 到期后未命中
	mr.FastForward(2 * time.Minute)
	_, err = manager.Get(ctx, "token")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_SetRejectsNonPositiveTTL(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.Error(t, manager.Set(context.Background(), "k", "v", 0))
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, manager.Delete(ctx, "k"))
	require.NoError(t, manager.Delete(ctx))

	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, manager.Set(context.Background(), "k", "v", time.Minute))
}
