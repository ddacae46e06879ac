package passkey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Mintimate/open-kounter/internal/model"
	"github.com/Mintimate/open-kounter/internal/store"

	"github.com/google/uuid"
)

const challengeSize = 32

// newRecordID returns a dashless random UUID, the id format for
// challenges and management tokens.
func newRecordID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newChallengeBytes() ([]byte, error) {
	b := make([]byte, challengeSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	return b, nil
}

func encodeChallenge(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *Service) storeChallenge(ctx context.Context, id string, ch model.Challenge) error {
	ch.CreatedAt = model.Millis(s.now())
	return s.putJSON(ctx, challengeKey(id), ch, s.challengeTTL)
}

// takeChallenge fetches and deletes a challenge. The record is gone after
// the first read whatever the caller does with it next, which makes every
// challenge single-use.
func (s *Service) takeChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	var ch model.Challenge
	if err := s.getJSON(ctx, challengeKey(id), &ch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChallengeExpired
		}
		return nil, err
	}
	if err := s.kv.Delete(ctx, challengeKey(id)); err != nil {
		return nil, err
	}

	if ch.UserID != "" {
		if err := s.clearChallengePointer(ctx, ch.UserID, id); err != nil {
			s.log.WithError(err).WithField("user_id", ch.UserID).Error("challenge pointer cleanup failed")
		}
	}
	return &ch, nil
}

func (s *Service) clearChallengePointer(ctx context.Context, userID, challengeID string) error {
	u, err := s.loadUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.CurrentChallengeID != challengeID {
		return nil
	}
	u.CurrentChallengeID = ""
	return s.saveUser(ctx, u)
}

// discardStaleChallenge invalidates the outstanding challenge of u, if
// any. The caller persists u.
func (s *Service) discardStaleChallenge(ctx context.Context, u *model.User) error {
	if u.CurrentChallengeID == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, challengeKey(u.CurrentChallengeID)); err != nil {
		return err
	}
	u.CurrentChallengeID = ""
	return nil
}

// CancelChallenge discards an abandoned challenge. It always succeeds;
// cleanup problems are only logged.
func (s *Service) CancelChallenge(ctx context.Context, challengeID string) {
	if challengeID == "" {
		return
	}
	if _, err := s.takeChallenge(ctx, challengeID); err != nil && !errors.Is(err, ErrChallengeExpired) {
		s.log.WithError(err).Warn("cancel challenge failed")
	}
}
