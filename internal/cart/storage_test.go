package cart

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ygo-storefront-api/internal/model"
)

func TestFileStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := NewFileBackend(dir)

	blob, err := backend.For("client-1").Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, blob)

	store := NewStore(backend.For("client-1"), nil)
	_, err = store.Add(ctx, 5, 2)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "client-1", StorageKey+".json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":5,"qty":2}]`, string(data))

	reopened := NewStore(NewFileBackend(dir).For("client-1"), nil)
	lines, err := reopened.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.CartLine{{CardID: 5, Qty: 2}}, lines)
}

func backdate(t *testing.T, dir, clientID string, age time.Duration) {
	t.Helper()
	stale := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(dir, clientID, StorageKey+".json"), stale, stale))
}

func TestManagerSweepRemovesIdleFileCarts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := NewFileBackend(dir)
	manager := NewManager(backend, nil)

	require.NoError(t, backend.For("old").Save(ctx, []byte(`[]`)))
	require.NoError(t, backend.For("fresh").Save(ctx, []byte(`[]`)))
	backdate(t, dir, "old", 2*time.Hour)

	removed, err := manager.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	blob, err := backend.For("old").Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, blob)
	assert.NoDirExists(t, filepath.Join(dir, "old"))

	blob, err = backend.For("fresh").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), blob)
}

func TestManagerSweepWaitsForClientLock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := NewFileBackend(dir)
	manager := NewManager(backend, nil)

	require.NoError(t, backend.For("busy").Save(ctx, []byte(`[{"id":5,"qty":1}]`)))
	backdate(t, dir, "busy", 2*time.Hour)

	mu := manager.lockFor("busy")
	mu.Lock()

	done := make(chan int64, 1)
	go func() {
		removed, _ := manager.Sweep(ctx, time.Hour)
		done <- removed
	}()

	select {
	case <-done:
		t.Fatal("sweep removed a cart while its client lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	// A write made under the lock refreshes the cart, so the sweep keeps it.
	require.NoError(t, backend.For("busy").Save(ctx, []byte(`[{"id":5,"qty":2}]`)))
	mu.Unlock()

	assert.Equal(t, int64(0), <-done)
	blob, err := backend.For("busy").Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":5,"qty":2}]`, string(blob))
}

func TestManagerSweepMissingDirAndMemoryBackend(t *testing.T) {
	ctx := context.Background()

	removed, err := NewManager(NewFileBackend(filepath.Join(t.TempDir(), "missing")), nil).Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = NewManager(NewMemoryBackend(), nil).Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	prefix := "ygo:test:" + time.Now().Format("150405.000000") + ":"
	backend := NewRedisBackend(client, prefix, time.Minute)
	t.Cleanup(func() { client.Del(ctx, prefix+"client-1:"+StorageKey) })

	store := NewStore(backend.For("client-1"), nil)
	_, err := store.Add(ctx, 5, 2)
	require.NoError(t, err)

	lines, err := NewStore(backend.For("client-1"), nil).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.CartLine{{CardID: 5, Qty: 2}}, lines)

	ttl, err := client.TTL(ctx, prefix+"client-1:"+StorageKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
