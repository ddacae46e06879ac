package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mintimate/open-kounter/internal/model"
	"github.com/Mintimate/open-kounter/internal/store"
)

func (s *Service) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, raw, store.PutOptions{TTL: ttl})
}

func (s *Service) loadUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.getJSON(ctx, userKey(id), &u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) saveUser(ctx context.Context, u *model.User) error {
	if u.CredentialIDs == nil {
		u.CredentialIDs = []string{}
	}
	return s.putJSON(ctx, userKey(u.ID), u, 0)
}

func (s *Service) loadCredential(ctx context.Context, id string) (*model.Credential, error) {
	var c model.Credential
	if err := s.getJSON(ctx, credentialKey(id), &c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

// saveCredential writes the credential and makes sure its owner lists it.
// A credential id taken over by another user is dropped from the previous
// owner's set.
func (s *Service) saveCredential(ctx context.Context, c *model.Credential) error {
	if c.Transports == nil {
		c.Transports = []string{}
	}

	prev, err := s.loadCredential(ctx, c.ID)
	switch {
	case errors.Is(err, ErrCredentialNotFound):
	case err != nil:
		return err
	case prev.UserID != c.UserID:
		if err := s.detachCredential(ctx, prev.UserID, c.ID); err != nil {
			return err
		}
	}

	if err := s.putJSON(ctx, credentialKey(c.ID), c, 0); err != nil {
		return err
	}

	u, err := s.loadUser(ctx, c.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.AddCredential(c.ID) {
		return s.saveUser(ctx, u)
	}
	return nil
}

// userCredentials resolves the forward index of userID. Only records that
// still name userID as owner are returned; stale ids are pruned from the
// index. An unknown user has no credentials.
func (s *Service) userCredentials(ctx context.Context, userID string) ([]model.Credential, error) {
	u, err := s.loadUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return []model.Credential{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]model.Credential, 0, len(u.CredentialIDs))
	var stale []string
	for _, id := range u.CredentialIDs {
		c, err := s.loadCredential(ctx, id)
		if errors.Is(err, ErrCredentialNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.UserID != userID {
			stale = append(stale, id)
			continue
		}
		out = append(out, *c)
	}

	if len(stale) > 0 {
		for _, id := range stale {
			u.RemoveCredential(id)
		}
		if err := s.saveUser(ctx, u); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// detachCredential removes id from the credential set of userID.
func (s *Service) detachCredential(ctx context.Context, userID, id string) error {
	u, err := s.loadUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.RemoveCredential(id) {
		return nil
	}
	return s.saveUser(ctx, u)
}

// removeCredential drops id from its owner's set and deletes the record.
// It reports false when the credential does not exist.
func (s *Service) removeCredential(ctx context.Context, id string) (bool, error) {
	c, err := s.loadCredential(ctx, id)
	if errors.Is(err, ErrCredentialNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.detachCredential(ctx, c.UserID, id); err != nil {
		return false, err
	}
	if err := s.kv.Delete(ctx, credentialKey(id)); err != nil {
		return false, err
	}
	return true, nil
}
