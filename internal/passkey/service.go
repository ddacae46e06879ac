// Package passkey implements the WebAuthn registration, authentication and
// credential management flows on top of a TTL-capable key-value store.
//
// Only the client data (challenge, origin and ceremony type) of an
// authenticator response is checked. Attestation statements, assertion
// signatures and the signature counter are not verified.
package passkey

import (
	"context"
	"time"

	"github.com/Mintimate/open-kounter/internal/store"

	"github.com/sirupsen/logrus"
)

const (
	DefaultChallengeTTL       = 300 * time.Second
	DefaultManagementTokenTTL = 300 * time.Second
)

// TokenValidator checks a caller-supplied shared access token.
type TokenValidator interface {
	Valid(ctx context.Context, token string) (bool, error)
}

type Service struct {
	kv     store.KV
	tokens TokenValidator
	log    logrus.FieldLogger
	now    func() time.Time

	challengeTTL time.Duration
	mgmtTokenTTL time.Duration
}

type Option func(*Service)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

func WithManagementTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.mgmtTokenTTL = ttl
		}
	}
}

func NewService(kv store.KV, tokens TokenValidator, opts ...Option) *Service {
	s := &Service{
		kv:           kv,
		tokens:       tokens,
		log:          logrus.StandardLogger(),
		now:          time.Now,
		challengeTTL: DefaultChallengeTTL,
		mgmtTokenTTL: DefaultManagementTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
