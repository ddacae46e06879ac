package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Actions accepted by Dispatch.
const (
	ActionGenerateRegistrationOptions   = "generateRegistrationOptions"
	ActionVerifyRegistration            = "verifyRegistration"
	ActionGenerateAuthenticationOptions = "generateAuthenticationOptions"
	ActionVerifyAuthentication          = "verifyAuthentication"
	ActionGenerateManagementToken       = "generateManagementToken"
	ActionListCredentials               = "listCredentials"
	ActionDeleteCredential              = "deleteCredential"
	ActionCancelChallenge               = "cancelChallenge"
)

var ErrUnknownAction = errors.New("unknown action")

var validate = validator.New()

type Request struct {
	Action string          `json:"action" validate:"required"`
	Data   json.RawMessage `json:"data"`
}

type registrationOptionsInput struct {
	Username string `json:"username" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

type ceremonyInput struct {
	ChallengeID string              `json:"challengeId" validate:"required"`
	Response    *CredentialResponse `json:"response" validate:"required"`
}

type authenticationOptionsInput struct {
	Username string `json:"username"`
}

type listCredentialsInput struct {
	Username string `json:"username" validate:"required"`
}

type deleteCredentialInput struct {
	CredentialID    string `json:"credentialId" validate:"required"`
	Username        string `json:"username" validate:"required"`
	ManagementToken string `json:"managementToken"`
}

type cancelChallengeInput struct {
	ChallengeID string `json:"challengeId"`
}

// decodeInput unmarshals data into v and validates it. Validation failures
// are reported with msg.
func decodeInput(data json.RawMessage, v any, msg string) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return invalidInput(msg)
		}
	}
	if err := validate.Struct(v); err != nil {
		return invalidInput(msg)
	}
	return nil
}

// Dispatch runs one action and converts its outcome into a Result. It
// never panics; a panic inside a flow becomes a failure envelope.
func (s *Service) Dispatch(ctx context.Context, rp RelyingParty, req Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithField("action", req.Action).Errorf("passkey action panicked: %v", rec)
			res = FailureMessage(fmt.Sprint(rec))
		}
	}()

	data, err := s.run(ctx, rp, req)
	if err != nil {
		log := s.log.WithField("action", req.Action).WithError(err)
		if CodeFor(err) == CodeFail && !errors.Is(err, ErrInvalidInput) {
			log.Warn("passkey action failed")
		} else {
			log.Debug("passkey action rejected")
		}
		return Failure(err)
	}
	if msg, ok := data.(message); ok {
		return SuccessMessage(string(msg))
	}
	return Success(data)
}

type message string

func (s *Service) run(ctx context.Context, rp RelyingParty, req Request) (any, error) {
	if err := validate.Struct(req); err != nil {
		return nil, invalidInput("action is required")
	}

	switch req.Action {
	case ActionGenerateRegistrationOptions:
		var in registrationOptionsInput
		if err := decodeInput(req.Data, &in, "username and token are required"); err != nil {
			return nil, err
		}
		return s.BeginRegistration(ctx, rp, in.Username, in.Token)

	case ActionVerifyRegistration:
		var in ceremonyInput
		if err := decodeInput(req.Data, &in, "missing required parameters"); err != nil {
			return nil, err
		}
		return s.FinishRegistration(ctx, rp, in.ChallengeID, in.Response)

	case ActionGenerateAuthenticationOptions:
		var in authenticationOptionsInput
		if err := decodeInput(req.Data, &in, "invalid parameters"); err != nil {
			return nil, err
		}
		return s.BeginAuthentication(ctx, rp, in.Username)

	case ActionVerifyAuthentication:
		var in ceremonyInput
		if err := decodeInput(req.Data, &in, "missing required parameters"); err != nil {
			return nil, err
		}
		return s.FinishAuthentication(ctx, rp, in.ChallengeID, in.Response)

	case ActionGenerateManagementToken:
		var in ceremonyInput
		if err := decodeInput(req.Data, &in, "missing required parameters"); err != nil {
			return nil, err
		}
		return s.IssueManagementToken(ctx, rp, in.ChallengeID, in.Response)

	case ActionListCredentials:
		var in listCredentialsInput
		if err := decodeInput(req.Data, &in, "username is required"); err != nil {
			return nil, err
		}
		return s.ListCredentials(ctx, in.Username)

	case ActionDeleteCredential:
		var in deleteCredentialInput
		if err := decodeInput(req.Data, &in, "credential id and username are required"); err != nil {
			return nil, err
		}
		return s.DeleteCredential(ctx, in.CredentialID, in.Username, in.ManagementToken)

	case ActionCancelChallenge:
		var in cancelChallengeInput
		if err := decodeInput(req.Data, &in, "invalid parameters"); err != nil {
			return nil, err
		}
		s.CancelChallenge(ctx, in.ChallengeID)
		return message("challenge cleared"), nil

	default:
		return nil, ErrUnknownAction
	}
}
