package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mintimate/open-kounter/internal/store"
	"github.com/Mintimate/open-kounter/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, *storetest.Clock) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "openkounter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := storetest.NewClock()
	s.now = clock.Now
	return s, clock
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Fixture {
		s, clock := openTestStore(t)
		return storetest.Fixture{KV: s, Advance: clock.Advance}
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "system:token", []byte("secret"), store.PutOptions{}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "system:token")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(got))
}

func TestGetDeletesExpiredRow(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "passkey:mgmt_token:t", []byte("{}"), store.PutOptions{TTL: 5 * time.Minute}))
	clock.Advance(5 * time.Minute)

	_, err := s.Get(ctx, "passkey:mgmt_token:t")
	assert.ErrorIs(t, err, store.ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM kv_store`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestListEscapesWildcards(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a%b", []byte("1"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "axb", []byte("2"), store.PutOptions{}))

	entries, err := s.List(ctx, "a%")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a%b", entries[0].Key)
}

func TestExpiredDeleteKeepsRewrittenValue(t *testing.T) {
	ctx := context.Background()
	s, clock := openTestStore(t)

	require.NoError(t, s.Put(ctx, "passkey:challenge:a", []byte("stale"), store.PutOptions{TTL: time.Minute}))
	clock.Advance(2 * time.Minute)
	readAt := toMillis(clock.Now())

	// a writer refreshes the key between the expired read and its cleanup
	require.NoError(t, s.Put(ctx, "passkey:challenge:a", []byte("fresh"), store.PutOptions{TTL: 5 * time.Minute}))
	require.NoError(t, s.Put(ctx, "passkey:user:a", []byte("durable"), store.PutOptions{}))

	require.NoError(t, s.deleteExpired(ctx, "passkey:challenge:a", readAt))
	require.NoError(t, s.deleteExpired(ctx, "passkey:user:a", readAt))

	got, err := s.Get(ctx, "passkey:challenge:a")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))

	got, err = s.Get(ctx, "passkey:user:a")
	require.NoError(t, err)
	assert.Equal(t, "durable", string(got))
}
