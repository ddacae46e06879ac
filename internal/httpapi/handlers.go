package httpapi

import (
	"net/http"
	"time"

	"github.com/Mintimate/open-kounter/internal/metrics"
	"github.com/Mintimate/open-kounter/internal/passkey"
	"github.com/Mintimate/open-kounter/internal/systemtoken"
)

const (
	actionVerify  = "verify"
	actionInit    = "init"
	actionUnknown = "unknown"
)

// knownActions bounds the metric label set; anything else a client sends
// is counted as unknown.
var knownActions = map[string]bool{
	passkey.ActionGenerateRegistrationOptions:   true,
	passkey.ActionVerifyRegistration:            true,
	passkey.ActionGenerateAuthenticationOptions: true,
	passkey.ActionVerifyAuthentication:          true,
	passkey.ActionGenerateManagementToken:       true,
	passkey.ActionListCredentials:               true,
	passkey.ActionDeleteCredential:              true,
	passkey.ActionCancelChallenge:               true,
	systemtoken.ActionGetStatus:                 true,
	systemtoken.ActionSyncAdminToken:            true,
	actionVerify:                                true,
	actionInit:                                  true,
}

func actionLabel(action string) string {
	if knownActions[action] {
		return action
	}
	return actionUnknown
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handlePasskey(w http.ResponseWriter, r *http.Request) {
	var req passkey.Request
	if !readJSON(w, r, &req) {
		return
	}
	start := time.Now()
	res := s.passkeys.Dispatch(r.Context(), s.relyingParty(r), req)
	metrics.RecordAction("passkey", actionLabel(req.Action), res.Code, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req systemtoken.AuthRequest
	if !readJSON(w, r, &req) {
		return
	}
	start := time.Now()
	res := s.auth.Handle(r.Context(), req)
	action := req.Action
	if action == "" {
		action = actionVerify
	}
	metrics.RecordAction("auth", actionLabel(action), res.Code, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req systemtoken.InitRequest
	if !readJSON(w, r, &req) {
		return
	}
	start := time.Now()
	res := s.auth.Init(r.Context(), req)
	metrics.RecordAction("init", actionInit, res.Code, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}
