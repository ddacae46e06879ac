package passkey

import (
	"context"
	"errors"

	"github.com/Mintimate/open-kounter/internal/model"
	"github.com/Mintimate/open-kounter/internal/store"
)

func (s *Service) issueManagementToken(ctx context.Context, userID string) (string, error) {
	id := newRecordID()
	rec := model.ManagementToken{
		UserID:    userID,
		CreatedAt: model.Millis(s.now()),
	}
	if err := s.putJSON(ctx, mgmtTokenKey(id), rec, s.mgmtTokenTTL); err != nil {
		return "", err
	}
	return id, nil
}

// LookupManagementToken returns the live record for tokenID without
// consuming it.
func (s *Service) LookupManagementToken(ctx context.Context, tokenID string) (*model.ManagementToken, error) {
	if tokenID == "" {
		return nil, ErrInvalidManagementToken
	}
	var rec model.ManagementToken
	if err := s.getJSON(ctx, mgmtTokenKey(tokenID), &rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidManagementToken
		}
		return nil, err
	}
	return &rec, nil
}

// RevokeManagementToken deletes tokenID; revoking an unknown token is not
// an error.
func (s *Service) RevokeManagementToken(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	return s.kv.Delete(ctx, mgmtTokenKey(tokenID))
}

func (s *Service) checkManagementToken(ctx context.Context, tokenID, userID string) error {
	rec, err := s.LookupManagementToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return ErrInvalidManagementToken
	}
	return nil
}
