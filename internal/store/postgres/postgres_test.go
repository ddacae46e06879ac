package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Mintimate/open-kounter/internal/store"
	"github.com/Mintimate/open-kounter/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to DATABASE_URL and resets the kv_store table.
// It skips tests if DATABASE_URL is not set.
func setupTestDB(t *testing.T) *Store {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL tests")
	}

	s, err := NewStore(databaseURL)
	require.NoError(t, err)

	_, err = s.pool.Exec(context.Background(), `truncate table public.kv_store`)
	require.NoError(t, err)

	t.Cleanup(s.Close)
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Fixture {
		return storetest.Fixture{KV: setupTestDB(t)}
	})
}

func TestTTLUsesDatabaseClock(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "passkey:challenge:short", []byte("c"), store.PutOptions{TTL: time.Second}))
	require.NoError(t, s.Put(ctx, "passkey:user:forever", []byte("u"), store.PutOptions{}))

	_, err := s.Get(ctx, "passkey:challenge:short")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	_, err = s.Get(ctx, "passkey:challenge:short")
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "passkey:user:forever")
	assert.NoError(t, err)
}
