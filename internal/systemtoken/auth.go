package systemtoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mintimate/open-kounter/internal/model"
	"github.com/Mintimate/open-kounter/internal/passkey"

	"github.com/sirupsen/logrus"
)

const (
	ActionGetStatus      = "get_status"
	ActionSyncAdminToken = "syncAdminToken"
)

// ManagementTokens is the subset of the passkey service used to accept a
// passkey step-up token in place of the access token.
type ManagementTokens interface {
	LookupManagementToken(ctx context.Context, tokenID string) (*model.ManagementToken, error)
	RevokeManagementToken(ctx context.Context, tokenID string) error
}

type AuthRequest struct {
	Action          string `json:"action"`
	Token           string `json:"token"`
	NewToken        string `json:"newToken"`
	ManagementToken string `json:"managementToken"`
}

type InitRequest struct {
	Token string `json:"token"`
}

type Status struct {
	HasAdminToken bool `json:"hasAdminToken"`
	Initialized   bool `json:"initialized"`
}

type Authorization struct {
	Authorized bool `json:"authorized"`
}

type Auth struct {
	src  *Source
	mgmt ManagementTokens
	log  logrus.FieldLogger
}

func NewAuth(src *Source, mgmt ManagementTokens, log logrus.FieldLogger) *Auth {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Auth{src: src, mgmt: mgmt, log: log}
}

func (a *Auth) Status(ctx context.Context) (Status, error) {
	stored, err := a.src.Stored(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{HasAdminToken: a.src.HasAdminToken(), Initialized: stored != ""}, nil
}

// Init handles the one-time initialization call.
func (a *Auth) Init(ctx context.Context, req InitRequest) passkey.Result {
	if err := a.src.Initialize(ctx, req.Token); err != nil {
		return passkey.Failure(err)
	}
	a.log.Info("system token initialized")
	return passkey.SuccessMessage("System initialized successfully")
}

// Handle runs an auth action. Without a recognized action it verifies
// the caller and, when NewToken is set, rotates the stored token.
func (a *Auth) Handle(ctx context.Context, req AuthRequest) passkey.Result {
	res, err := a.handle(ctx, req)
	if err != nil {
		a.log.WithField("action", req.Action).WithError(err).Debug("auth request rejected")
		return passkey.Failure(err)
	}
	return res
}

func (a *Auth) handle(ctx context.Context, req AuthRequest) (passkey.Result, error) {
	if req.Action == ActionGetStatus {
		st, err := a.Status(ctx)
		if err != nil {
			return passkey.Result{}, err
		}
		return passkey.Success(st), nil
	}

	effective, err := a.src.Effective(ctx)
	if err != nil {
		return passkey.Result{}, err
	}
	if effective == "" {
		return passkey.Result{}, ErrNotInitialized
	}

	if req.Action == ActionSyncAdminToken {
		if !a.src.HasAdminToken() {
			return passkey.Result{}, ErrAdminTokenNotConfigured
		}
		if !equal(req.Token, a.src.adminToken) {
			return passkey.Result{}, ErrInvalidAdminToken
		}
		if err := a.src.set(ctx, a.src.adminToken); err != nil {
			return passkey.Result{}, err
		}
		a.log.Info("system token synced with ADMIN_TOKEN")
		return passkey.SuccessMessage("KV token synced with ADMIN_TOKEN"), nil
	}

	viaPasskey, err := a.authorize(ctx, effective, req)
	if err != nil {
		return passkey.Result{}, err
	}

	if req.NewToken == "" {
		return passkey.Success(Authorization{Authorized: true}), nil
	}
	if err := a.src.set(ctx, req.NewToken); err != nil {
		return passkey.Result{}, err
	}
	if viaPasskey {
		if err := a.mgmt.RevokeManagementToken(ctx, req.ManagementToken); err != nil {
			a.log.WithError(err).Warn("management token revoke failed")
		}
	}
	a.log.WithField("via_passkey", viaPasskey).Info("system token rotated")
	return passkey.SuccessMessage("Token updated"), nil
}

// authorize accepts the effective token or a live passkey management
// token. It reports whether the management token was the credential used.
func (a *Auth) authorize(ctx context.Context, effective string, req AuthRequest) (bool, error) {
	if equal(req.Token, effective) || equal(req.Token, a.src.adminToken) {
		return false, nil
	}
	if req.ManagementToken == "" || a.mgmt == nil {
		return false, ErrUnauthorized
	}
	_, err := a.mgmt.LookupManagementToken(ctx, req.ManagementToken)
	if errors.Is(err, passkey.ErrInvalidManagementToken) {
		return false, ErrUnauthorized
	}
	if err != nil {
		return false, fmt.Errorf("lookup management token: %w", err)
	}
	return true, nil
}
