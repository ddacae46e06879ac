package passkey

import (
	"context"
	"fmt"

	"github.com/Mintimate/open-kounter/internal/model"

	"github.com/sirupsen/logrus"
)

type ManagementTokenResult struct {
	ManagementToken string `json:"managementToken"`
	Username        string `json:"username"`
}

type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// IssueManagementToken verifies an assertion and mints a short-lived
// step-up token bound to the credential's owner.
func (s *Service) IssueManagementToken(ctx context.Context, rp RelyingParty, challengeID string, resp *CredentialResponse) (*ManagementTokenResult, error) {
	cred, u, err := s.verifyAssertion(ctx, rp, challengeID, resp)
	if err != nil {
		return nil, err
	}
	token, err := s.issueManagementToken(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", cred.UserID).Info("management token issued")
	return &ManagementTokenResult{ManagementToken: token, Username: u.Username}, nil
}

// ListCredentials returns the redacted credentials of username. An unknown
// user has an empty list.
func (s *Service) ListCredentials(ctx context.Context, username string) ([]model.CredentialSummary, error) {
	if username == "" {
		return nil, invalidInput("username is required")
	}
	creds, err := s.userCredentials(ctx, UserID(username))
	if err != nil {
		return nil, err
	}
	out := make([]model.CredentialSummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.Summary())
	}
	return out, nil
}

// DeleteCredential removes a credential owned by username. The management
// token must be bound to the same user and is consumed on success.
func (s *Service) DeleteCredential(ctx context.Context, credentialID, username, managementToken string) (*DeleteResult, error) {
	if credentialID == "" || username == "" {
		return nil, invalidInput("credential id and username are required")
	}
	if managementToken == "" {
		return nil, invalidInput("management token required")
	}

	cred, err := s.loadCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	userID := UserID(username)
	if cred.UserID != userID {
		return nil, ErrUnauthorized
	}
	if err := s.checkManagementToken(ctx, managementToken, userID); err != nil {
		return nil, err
	}

	if _, err := s.removeCredential(ctx, credentialID); err != nil {
		return nil, fmt.Errorf("delete credential: %w", err)
	}
	if err := s.RevokeManagementToken(ctx, managementToken); err != nil {
		s.log.WithError(err).Warn("management token revoke failed")
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "credential_id": credentialID}).Info("passkey deleted")
	return &DeleteResult{Deleted: true}, nil
}
