package passkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mintimate/open-kounter/internal/model"

	"github.com/go-webauthn/webauthn/protocol"
)

type AuthenticationStart struct {
	Options     AuthenticationOptions `json:"options"`
	ChallengeID string                `json:"challengeId"`
}

type AuthenticationResult struct {
	Verified bool   `json:"verified"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// BeginAuthentication issues request options. With a username the options
// list that user's credentials; without one any discoverable credential
// may answer.
func (s *Service) BeginAuthentication(ctx context.Context, rp RelyingParty, username string) (*AuthenticationStart, error) {
	var (
		userID string
		owner  *model.User
		allow  []AllowedCredential
	)

	if username != "" {
		userID = UserID(username)

		// resolve credentials first; it may prune the user's index
		creds, err := s.userCredentials(ctx, userID)
		if err != nil {
			return nil, err
		}

		u, err := s.loadUser(ctx, userID)
		switch {
		case errors.Is(err, ErrUserNotFound):
		case err != nil:
			return nil, err
		default:
			if err := s.discardStaleChallenge(ctx, u); err != nil {
				return nil, err
			}
			owner = u
		}
		if len(creds) == 0 {
			if owner != nil {
				if err := s.saveUser(ctx, owner); err != nil {
					return nil, err
				}
			}
			return nil, fmt.Errorf("%w: no passkey found for this user", ErrCredentialNotFound)
		}
		for _, c := range creds {
			transports := c.Transports
			if transports == nil {
				transports = []string{}
			}
			allow = append(allow, AllowedCredential{
				ID:         c.ID,
				Type:       protocol.PublicKeyCredentialType,
				Transports: transports,
			})
		}
	}

	raw, err := newChallengeBytes()
	if err != nil {
		return nil, err
	}
	challengeID := newRecordID()

	if owner != nil {
		owner.CurrentChallengeID = challengeID
		if err := s.saveUser(ctx, owner); err != nil {
			return nil, err
		}
	}
	if err := s.storeChallenge(ctx, challengeID, model.Challenge{
		Challenge: encodeChallenge(raw),
		UserID:    userID,
	}); err != nil {
		return nil, err
	}

	return &AuthenticationStart{
		Options:     authenticationOptions(rp, raw, allow),
		ChallengeID: challengeID,
	}, nil
}

// FinishAuthentication verifies an assertion and returns the access token
// stored for the credential's owner.
func (s *Service) FinishAuthentication(ctx context.Context, rp RelyingParty, challengeID string, resp *CredentialResponse) (*AuthenticationResult, error) {
	cred, u, err := s.verifyAssertion(ctx, rp, challengeID, resp)
	if err != nil {
		return nil, err
	}

	used := model.Millis(s.now())
	cred.LastUsedAt = &used
	if err := s.saveCredential(ctx, cred); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", u.ID).Info("passkey authenticated")
	return &AuthenticationResult{
		Verified: true,
		Username: u.Username,
		Token:    u.Token,
	}, nil
}

// verifyAssertion runs the shared part of every assertion ceremony:
// consume the challenge, resolve the credential and its owner, then check
// the client data.
func (s *Service) verifyAssertion(ctx context.Context, rp RelyingParty, challengeID string, resp *CredentialResponse) (*model.Credential, *model.User, error) {
	if challengeID == "" || resp == nil {
		return nil, nil, invalidInput("missing required parameters")
	}
	ch, err := s.takeChallenge(ctx, challengeID)
	if err != nil {
		return nil, nil, err
	}
	if resp.ID == "" {
		return nil, nil, ErrCredentialNotFound
	}
	cred, err := s.loadCredential(ctx, resp.ID)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.loadUser(ctx, cred.UserID)
	if err != nil {
		return nil, nil, err
	}
	if err := verifyClientData(resp, ch.Challenge, rp, protocol.AssertCeremony); err != nil {
		return nil, nil, err
	}
	return cred, u, nil
}
