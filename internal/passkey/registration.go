package passkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mintimate/open-kounter/internal/model"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/sirupsen/logrus"
)

type RegistrationStart struct {
	Options     RegistrationOptions `json:"options"`
	ChallengeID string              `json:"challengeId"`
}

type RegistrationResult struct {
	Verified     bool   `json:"verified"`
	CredentialID string `json:"credentialId"`
}

// BeginRegistration issues creation options for username. The caller must
// present the shared access token, which is stored on the user record and
// later handed back by a successful authentication.
func (s *Service) BeginRegistration(ctx context.Context, rp RelyingParty, username, token string) (*RegistrationStart, error) {
	if username == "" || token == "" {
		return nil, invalidInput("username and token are required")
	}
	ok, err := s.tokens.Valid(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if !ok {
		return nil, ErrInvalidToken
	}

	userID := UserID(username)
	now := model.Millis(s.now())

	u, err := s.loadUser(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		u = &model.User{
			ID:            userID,
			Username:      username,
			Token:         token,
			CredentialIDs: []string{},
			CreatedAt:     now,
		}
	case err != nil:
		return nil, err
	default:
		if err := s.discardStaleChallenge(ctx, u); err != nil {
			return nil, err
		}
		u.Token = token
		u.UpdatedAt = now
	}

	raw, err := newChallengeBytes()
	if err != nil {
		return nil, err
	}
	challengeID := newRecordID()

	u.CurrentChallengeID = challengeID
	if err := s.saveUser(ctx, u); err != nil {
		return nil, err
	}
	err = s.storeChallenge(ctx, challengeID, model.Challenge{
		Challenge:      encodeChallenge(raw),
		UserID:         userID,
		Username:       username,
		Token:          token,
		WebAuthnUserID: userID,
	})
	if err != nil {
		return nil, err
	}

	return &RegistrationStart{
		Options:     registrationOptions(rp, username, raw),
		ChallengeID: challengeID,
	}, nil
}

// FinishRegistration consumes the challenge and stores the new credential.
// Any other credential the user owned is deleted, so a user is left with
// exactly one passkey.
func (s *Service) FinishRegistration(ctx context.Context, rp RelyingParty, challengeID string, resp *CredentialResponse) (*RegistrationResult, error) {
	if challengeID == "" || resp == nil {
		return nil, invalidInput("missing required parameters")
	}
	ch, err := s.takeChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Username == "" || ch.Token == "" {
		// authentication challenges cannot complete a registration
		return nil, ErrChallengeExpired
	}
	if resp.ID == "" {
		return nil, invalidInput("credential id is required")
	}
	if err := verifyClientData(resp, ch.Challenge, rp, protocol.CreateCeremony); err != nil {
		return nil, err
	}

	if err := s.ensureUser(ctx, ch); err != nil {
		return nil, err
	}

	cred := &model.Credential{
		ID:             resp.ID,
		PublicKey:      resp.Response.AttestationObject,
		Counter:        0,
		Transports:     resp.Response.Transports,
		DeviceType:     model.DeviceTypeMulti,
		BackedUp:       true,
		UserID:         ch.UserID,
		WebAuthnUserID: ch.WebAuthnUserID,
		CreatedAt:      model.Millis(s.now()),
	}
	if err := s.saveCredential(ctx, cred); err != nil {
		return nil, err
	}

	existing, err := s.userCredentials(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if c.ID == cred.ID {
			continue
		}
		if _, err := s.removeCredential(ctx, c.ID); err != nil {
			return nil, err
		}
	}

	u, err := s.loadUser(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	u.Token = ch.Token
	u.UpdatedAt = model.Millis(s.now())
	if err := s.saveUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": ch.UserID, "credential_id": cred.ID}).Info("passkey registered")
	return &RegistrationResult{Verified: true, CredentialID: cred.ID}, nil
}

// ensureUser recreates the owner record if it vanished between issuing
// the challenge and verifying it.
func (s *Service) ensureUser(ctx context.Context, ch *model.Challenge) error {
	_, err := s.loadUser(ctx, ch.UserID)
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return s.saveUser(ctx, &model.User{
		ID:            ch.UserID,
		Username:      ch.Username,
		Token:         ch.Token,
		CredentialIDs: []string{},
		CreatedAt:     model.Millis(s.now()),
	})
}
