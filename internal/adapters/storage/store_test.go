package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/geobot/internal/adapters/storage"
	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// exerciseStore corre el mismo contrato sobre cualquier backend.
func exerciseStore(t *testing.T, store ports.StateStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Save(ctx, "portfolio_base", []byte(`{"v":1}`)))
	got, err := store.Load(ctx, "portfolio_base")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))

	require.NoError(t, store.Save(ctx, "portfolio_base", []byte(`{"v":2}`)))
	got, err = store.Load(ctx, "portfolio_base")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestFileStore_Contract(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestFileStore_BackupBeforeOverwrite(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "live_portfolio", []byte(`{"v":1}`)))
	_, err = os.Stat(filepath.Join(dir, "live_portfolio.json.bak"))
	assert.True(t, os.IsNotExist(err), "no backup on first write")

	require.NoError(t, store.Save(ctx, "live_portfolio", []byte(`{"v":2}`)))
	bak, err := os.ReadFile(filepath.Join(dir, "live_portfolio.json.bak"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(bak))

	// sin temporales huérfanos
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStore_Backups(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for _, v := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`} {
		require.NoError(t, store.Save(ctx, "pending_trades", []byte(v)))
	}

	backups, err := store.Backups(ctx, "pending_trades")
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.JSONEq(t, `{"v":2}`, string(backups[0]))
	assert.JSONEq(t, `{"v":1}`, string(backups[1]))
}

func TestSQLiteStore_BackupsArePruned(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, store.Save(ctx, "k", []byte(`{}`)))
	}
	backups, err := store.Backups(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, backups, 20)
}

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := storage.NewRedisStore(ctx, storage.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)

	release, err := store.Acquire(ctx, "test-run", 10*time.Second)
	require.NoError(t, err)
	_, err = store.Acquire(ctx, "test-run", 10*time.Second)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	require.NoError(t, release(ctx))

	release, err = store.Acquire(ctx, "test-run", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
