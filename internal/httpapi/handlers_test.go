package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Mintimate/open-kounter/internal/config"
	"github.com/Mintimate/open-kounter/internal/metrics"
	"github.com/Mintimate/open-kounter/internal/passkey"
	"github.com/Mintimate/open-kounter/internal/store/memory"
	"github.com/Mintimate/open-kounter/internal/systemtoken"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:3000"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newTestServer wires the API against an in-memory store with the system
// token already initialized to "T".
func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	kv := memory.NewStore()
	src := systemtoken.NewSource(kv, "")
	require.NoError(t, src.Initialize(context.Background(), "T"))
	pk := passkey.NewService(kv, src, passkey.WithLogger(log))
	auth := systemtoken.NewAuth(src, pk, log)

	cfg := config.Config{RPName: "Open Kounter", CORSAllowedOrigins: []string{"*"}}
	return NewServer(cfg, log, pk, auth).Handler()
}

func post(t *testing.T, h http.Handler, path string, body any) envelope {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Host = "localhost:3000"
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func clientDataJSON(typ, challenge string) string {
	raw, _ := json.Marshal(map[string]string{"type": typ, "challenge": challenge, "origin": testOrigin})
	return base64.RawURLEncoding.EncodeToString(raw)
}

type ceremonyStart struct {
	ChallengeID string `json:"challengeId"`
	Options     struct {
		Challenge        string `json:"challenge"`
		RPID             string `json:"rpId"`
		AllowCredentials []struct {
			ID string `json:"id"`
		} `json:"allowCredentials"`
		RP struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"rp"`
	} `json:"options"`
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	require.Equal(t, passkey.CodeSuccess, env.Code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func ceremonyBody(challengeID, credentialID, typ, challenge string) map[string]any {
	return map[string]any{
		"action": "",
		"data": map[string]any{
			"challengeId": challengeID,
			"response": map[string]any{
				"id":    credentialID,
				"rawId": credentialID,
				"type":  "public-key",
				"response": map[string]any{
					"clientDataJSON":    clientDataJSON(typ, challenge),
					"attestationObject": "o2NmbXRkbm9uZQ",
					"transports":        []string{"internal"},
				},
			},
		},
	}
}

func TestPasskeyEndToEnd(t *testing.T) {
	h := newTestServer(t)

	var reg ceremonyStart
	decodeData(t, post(t, h, "/api/passkey", map[string]any{
		"action": "generateRegistrationOptions",
		"data":   map[string]string{"username": "alice", "token": "T"},
	}), &reg)
	assert.Equal(t, "localhost", reg.Options.RP.ID)
	assert.Equal(t, "Open Kounter", reg.Options.RP.Name)
	require.NotEmpty(t, reg.Options.Challenge)

	body := ceremonyBody(reg.ChallengeID, "cred-a", "webauthn.create", reg.Options.Challenge)
	body["action"] = "verifyRegistration"
	var verified map[string]any
	decodeData(t, post(t, h, "/api/passkey", body), &verified)
	assert.Equal(t, map[string]any{"verified": true, "credentialId": "cred-a"}, verified)

	var list []map[string]any
	decodeData(t, post(t, h, "/api/passkey", map[string]any{
		"action": "listCredentials",
		"data":   map[string]string{"username": "alice"},
	}), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "cred-a", list[0]["id"])
	assert.NotContains(t, list[0], "publicKey")

	var auth ceremonyStart
	decodeData(t, post(t, h, "/api/passkey", map[string]any{
		"action": "generateAuthenticationOptions",
		"data":   map[string]string{"username": "alice"},
	}), &auth)
	assert.Equal(t, "localhost", auth.Options.RPID)
	require.Len(t, auth.Options.AllowCredentials, 1)
	assert.Equal(t, "cred-a", auth.Options.AllowCredentials[0].ID)

	body = ceremonyBody(auth.ChallengeID, "cred-a", "webauthn.get", auth.Options.Challenge)
	body["action"] = "verifyAuthentication"
	var login map[string]any
	decodeData(t, post(t, h, "/api/passkey", body), &login)
	assert.Equal(t, map[string]any{"verified": true, "username": "alice", "token": "T"}, login)

	env := post(t, h, "/api/passkey", body)
	assert.Equal(t, passkey.CodeFail, env.Code)
	assert.Equal(t, "Challenge expired or invalid", env.Message)
}

func TestPasskeyNotFoundUsesApplicationCode(t *testing.T) {
	h := newTestServer(t)

	env := post(t, h, "/api/passkey", map[string]any{
		"action": "generateAuthenticationOptions",
		"data":   map[string]string{"username": "nobody-registered"},
	})
	assert.Equal(t, passkey.CodeNotFound, env.Code)
	assert.Empty(t, env.Data)
}

func TestManagementTokenRotatesSystemToken(t *testing.T) {
	h := newTestServer(t)

	var reg ceremonyStart
	decodeData(t, post(t, h, "/api/passkey", map[string]any{
		"action": "generateRegistrationOptions",
		"data":   map[string]string{"username": "alice", "token": "T"},
	}), &reg)
	body := ceremonyBody(reg.ChallengeID, "cred-a", "webauthn.create", reg.Options.Challenge)
	body["action"] = "verifyRegistration"
	require.Equal(t, passkey.CodeSuccess, post(t, h, "/api/passkey", body).Code)

	var auth ceremonyStart
	decodeData(t, post(t, h, "/api/passkey", map[string]any{
		"action": "generateAuthenticationOptions",
		"data":   map[string]string{},
	}), &auth)
	body = ceremonyBody(auth.ChallengeID, "cred-a", "webauthn.get", auth.Options.Challenge)
	body["action"] = "generateManagementToken"
	var mgmt struct {
		ManagementToken string `json:"managementToken"`
		Username        string `json:"username"`
	}
	decodeData(t, post(t, h, "/api/passkey", body), &mgmt)
	assert.Equal(t, "alice", mgmt.Username)

	env := post(t, h, "/api/auth", map[string]string{"managementToken": mgmt.ManagementToken, "newToken": "T2"})
	assert.Equal(t, passkey.CodeSuccess, env.Code)
	assert.Equal(t, "Token updated", env.Message)

	env = post(t, h, "/api/auth", map[string]string{"managementToken": mgmt.ManagementToken, "newToken": "T3"})
	assert.Equal(t, passkey.CodeFail, env.Code)

	env = post(t, h, "/api/auth", map[string]string{"token": "T2"})
	assert.Equal(t, passkey.CodeSuccess, env.Code)
	assert.JSONEq(t, `{"authorized":true}`, string(env.Data))
}

func TestInitAndStatus(t *testing.T) {
	h := newTestServer(t)

	env := post(t, h, "/api/init", map[string]string{"token": "again"})
	assert.Equal(t, "System already initialized", env.Message)

	env = post(t, h, "/api/auth", map[string]string{"action": "get_status"})
	assert.JSONEq(t, `{"hasAdminToken":false,"initialized":true}`, string(env.Data))
}

func TestTransportErrors(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/passkey", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/passkey", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Contains(t, rec.Body.String(), `"ok":true`)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/passkey", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestActionMetricsIgnoreClientLabels(t *testing.T) {
	h := newTestServer(t)

	before := testutil.CollectAndCount(metrics.ActionsTotal)
	for i := 0; i < 50; i++ {
		env := post(t, h, "/api/passkey", map[string]any{"action": fmt.Sprintf("junk-%d", i)})
		require.Equal(t, passkey.CodeFail, env.Code)
	}
	post(t, h, "/api/auth", map[string]string{"action": "junk", "token": "T"})
	after := testutil.CollectAndCount(metrics.ActionsTotal)

	assert.LessOrEqual(t, after-before, 2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues("passkey", "unknown", "1000")), float64(50))
}

func TestActionLabel(t *testing.T) {
	assert.Equal(t, passkey.ActionListCredentials, actionLabel(passkey.ActionListCredentials))
	assert.Equal(t, systemtoken.ActionGetStatus, actionLabel(systemtoken.ActionGetStatus))
	assert.Equal(t, "unknown", actionLabel(""))
	assert.Equal(t, "unknown", actionLabel("junk-1"))
}
