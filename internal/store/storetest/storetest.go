// Package storetest holds the behaviour every store.KV backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/Mintimate/open-kounter/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture is a fresh backend. Advance moves the backend clock forward; it
// is nil for backends whose clock cannot be controlled, which skips the
// TTL cases.
type Fixture struct {
	KV      store.KV
	Advance func(d time.Duration)
}

func Run(t *testing.T, newFixture func(t *testing.T) Fixture) {
	t.Run("GetMissing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.KV.Get(context.Background(), "passkey:user:missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		require.NoError(t, f.KV.Put(ctx, "system:token", []byte("first"), store.PutOptions{}))
		require.NoError(t, f.KV.Put(ctx, "system:token", []byte("second"), store.PutOptions{}))

		got, err := f.KV.Get(ctx, "system:token")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		require.NoError(t, f.KV.Put(ctx, "passkey:credential:a", []byte(`{}`), store.PutOptions{}))
		require.NoError(t, f.KV.Delete(ctx, "passkey:credential:a"))
		require.NoError(t, f.KV.Delete(ctx, "passkey:credential:a"))

		_, err := f.KV.Get(ctx, "passkey:credential:a")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("EmptyKeyRejected", func(t *testing.T) {
		f := newFixture(t)
		err := f.KV.Put(context.Background(), " ", []byte("x"), store.PutOptions{})
		assert.ErrorIs(t, err, store.ErrInvalidKey)
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		require.NoError(t, f.KV.Put(ctx, "passkey:mgmt_token:b", []byte("2"), store.PutOptions{}))
		require.NoError(t, f.KV.Put(ctx, "passkey:mgmt_token:a", []byte("1"), store.PutOptions{}))
		require.NoError(t, f.KV.Put(ctx, "passkey:mgmtXtoken:c", []byte("3"), store.PutOptions{}))
		require.NoError(t, f.KV.Put(ctx, "counter:x", []byte("4"), store.PutOptions{}))

		entries, err := f.KV.List(ctx, "passkey:mgmt_token:")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "passkey:mgmt_token:a", entries[0].Key)
		assert.Equal(t, "1", string(entries[0].Value))
		assert.Equal(t, "passkey:mgmt_token:b", entries[1].Key)

		none, err := f.KV.List(ctx, "nothing:")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		f := newFixture(t)
		if f.Advance == nil {
			t.Skip("backend clock not controllable")
		}
		ctx := context.Background()

		require.NoError(t, f.KV.Put(ctx, "passkey:challenge:c1", []byte("c"), store.PutOptions{TTL: 300 * time.Second}))
		require.NoError(t, f.KV.Put(ctx, "passkey:user:u1", []byte("u"), store.PutOptions{}))

		f.Advance(299 * time.Second)
		got, err := f.KV.Get(ctx, "passkey:challenge:c1")
		require.NoError(t, err)
		assert.Equal(t, "c", string(got))

		f.Advance(2 * time.Second)
		_, err = f.KV.Get(ctx, "passkey:challenge:c1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		entries, err := f.KV.List(ctx, "passkey:")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "passkey:user:u1", entries[0].Key)
	})

	t.Run("PurgeMatchesVisibleState", func(t *testing.T) {
		f := newFixture(t)
		if f.Advance == nil {
			t.Skip("backend clock not controllable")
		}
		sweeper, ok := f.KV.(store.Sweeper)
		if !ok {
			t.Skip("backend has no sweeper")
		}
		ctx := context.Background()

		require.NoError(t, f.KV.Put(ctx, "passkey:challenge:a", []byte("a"), store.PutOptions{TTL: time.Minute}))
		require.NoError(t, f.KV.Put(ctx, "passkey:challenge:b", []byte("b"), store.PutOptions{TTL: time.Minute}))
		require.NoError(t, f.KV.Put(ctx, "passkey:challenge:c", []byte("c"), store.PutOptions{TTL: time.Hour}))
		require.NoError(t, f.KV.Put(ctx, "system:token", []byte("t"), store.PutOptions{}))

		n, err := sweeper.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		f.Advance(2 * time.Minute)
		n, err = sweeper.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = f.KV.Get(ctx, "passkey:challenge:c")
		assert.NoError(t, err)
		_, err = f.KV.Get(ctx, "system:token")
		assert.NoError(t, err)
	})
}

// Clock is a manually advanced time source for backends that accept one.
type Clock struct {
	t time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time { return c.t }

func (c *Clock) Advance(d time.Duration) { c.t = c.t.Add(d) }
