package kling

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/mediaflow/internal/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileTokenStore_Missing(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "api_token.txt"))
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileTokenStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "api_token.txt")
	store := NewFileTokenStore(path)
	assert.Equal(t, path, store.Path())

	p, err := NewProvisioner("ak", "sk", testCredentialConfig())
	require.NoError(t, err)
	cred, err := p.Issue()
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), cred))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cred.Token, string(raw))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cred.Token, loaded.Token)
	assert.Equal(t, "ak", loaded.Issuer)
	assert.True(t, cred.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.True(t, cred.NotBefore.Equal(loaded.NotBefore))
}

func TestFileTokenStore_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_token.txt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-token"), 0o600))

	_, err := NewFileTokenStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestParseCredential_Empty(t *testing.T) {
	_, err := ParseCredential("  \n")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestCacheTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	store := NewCacheTokenStore(manager, "mediaflow:kling:token")
	ctx := context.Background()

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	p, err := NewProvisioner("ak", "sk", testCredentialConfig(), WithStore(store))
	require.NoError(t, err)
	cred, err := p.Token(ctx)
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cred.Token, loaded.Token)

	ttl := mr.TTL("mediaflow:kling:token")
	assert.Greater(t, ttl, 11*time.Hour)
	assert.LessOrEqual(t, ttl, 12*time.Hour)

	mr.FastForward(13 * time.Hour)
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestCacheTokenStore_SkipsExpired(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	store := NewCacheTokenStore(manager, "k")
	expired := &Credential{Token: "x", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.Save(context.Background(), expired))
	assert.False(t, mr.Exists("k"))
}
