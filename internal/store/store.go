package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("not_found")
	ErrInvalidKey = errors.New("invalid_key")
)

// ListLimit caps a single List call, matching the edge KV page size.
const ListLimit = 1000

type PutOptions struct {
	// TTL of zero stores the value without expiry.
	TTL time.Duration
}

type Entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// KV is the storage port every passkey record goes through. Values are
// opaque to the backend. An entry whose TTL has elapsed must behave as
// absent on every call even if it has not been purged yet.
type KV interface {
	// Get returns ErrNotFound for absent or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, opts PutOptions) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
}

// Sweeper is implemented by backends that can purge expired entries in
// bulk. Purging never changes what callers observe through KV.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
}

func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// ExpiresAt converts a TTL into an absolute deadline; the zero time means
// no expiry.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
