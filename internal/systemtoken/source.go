// Package systemtoken owns the shared access token stored under
// system:token and the optional ADMIN_TOKEN override.
package systemtoken

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/Mintimate/open-kounter/internal/store"
)

// SystemTokenKey holds the shared access token as a raw string.
const SystemTokenKey = "system:token"

var (
	ErrNotInitialized          = errors.New("not initialized")
	ErrAlreadyInitialized      = errors.New("system already initialized")
	ErrTokenRequired           = errors.New("token is required")
	ErrAdminTokenNotConfigured = errors.New("ADMIN_TOKEN not configured")
	ErrInvalidAdminToken       = errors.New("invalid ADMIN_TOKEN")
	ErrUnauthorized            = errors.New("invalid token or unauthorized")
)

// Source reads and writes the shared access token. The value is stored as
// a raw string, not JSON, to stay compatible with existing deployments.
type Source struct {
	kv         store.KV
	adminToken string
}

func NewSource(kv store.KV, adminToken string) *Source {
	return &Source{kv: kv, adminToken: adminToken}
}

func (s *Source) HasAdminToken() bool { return s.adminToken != "" }

// Stored returns the persisted token, or "" when the system has not been
// initialized.
func (s *Source) Stored(ctx context.Context) (string, error) {
	raw, err := s.kv.Get(ctx, SystemTokenKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read system token: %w", err)
	}
	return string(raw), nil
}

// Effective is the token that authorizes management calls: ADMIN_TOKEN
// when configured, otherwise the stored token.
func (s *Source) Effective(ctx context.Context) (string, error) {
	if s.adminToken != "" {
		return s.adminToken, nil
	}
	return s.Stored(ctx)
}

// Valid reports whether token matches either the stored token or
// ADMIN_TOKEN. It satisfies passkey.TokenValidator.
func (s *Source) Valid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if equal(token, s.adminToken) {
		return true, nil
	}
	stored, err := s.Stored(ctx)
	if err != nil {
		return false, err
	}
	return equal(token, stored), nil
}

// Initialize stores the first token. It refuses to overwrite an existing
// one.
func (s *Source) Initialize(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	stored, err := s.Stored(ctx)
	if err != nil {
		return err
	}
	if stored != "" {
		return ErrAlreadyInitialized
	}
	return s.set(ctx, token)
}

func (s *Source) set(ctx context.Context, token string) error {
	if err := s.kv.Put(ctx, SystemTokenKey, []byte(token), store.PutOptions{}); err != nil {
		return fmt.Errorf("write system token: %w", err)
	}
	return nil
}

// equal compares in constant time; an empty reference never matches.
func equal(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
