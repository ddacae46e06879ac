package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"testing"

	"github.com/Mintimate/open-kounter/internal/store/memory"
	"github.com/Mintimate/open-kounter/internal/store/storetest"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testToken = "T"

var testRP = RelyingParty{Name: "Open Kounter", ID: "localhost", Origin: "http://localhost:3000"}

type staticTokens string

func (s staticTokens) Valid(_ context.Context, token string) (bool, error) {
	return token == string(s), nil
}

type harness struct {
	svc   *Service
	kv    *memory.Store
	clock *storetest.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := storetest.NewClock()
	kv := memory.NewStore(memory.WithClock(clock.Now))
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &harness{
		svc:   NewService(kv, staticTokens(testToken), WithClock(clock.Now), WithLogger(log)),
		kv:    kv,
		clock: clock,
	}
}

func clientData(typ, challenge, origin string) string {
	raw, _ := json.Marshal(map[string]string{
		"type":      typ,
		"challenge": challenge,
		"origin":    origin,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func credentialResponse(id string, ceremony protocol.CeremonyType, challenge []byte, origin string) *CredentialResponse {
	return &CredentialResponse{
		ID:    id,
		RawID: id,
		Type:  "public-key",
		Response: AuthenticatorResponse{
			ClientDataJSON:    clientData(string(ceremony), encodeChallenge(challenge), origin),
			AttestationObject: "o2NmbXRkbm9uZQ",
			Transports:        []string{"internal", "hybrid"},
		},
	}
}

func (h *harness) register(t *testing.T, username, credentialID string) {
	t.Helper()
	ctx := context.Background()
	start, err := h.svc.BeginRegistration(ctx, testRP, username, testToken)
	require.NoError(t, err)
	resp := credentialResponse(credentialID, protocol.CreateCeremony, start.Options.Challenge, testRP.Origin)
	res, err := h.svc.FinishRegistration(ctx, testRP, start.ChallengeID, resp)
	require.NoError(t, err)
	require.True(t, res.Verified)
}

// assertion starts an authentication ceremony and builds a matching response
// for credentialID.
func (h *harness) assertion(t *testing.T, username, credentialID string) (string, *CredentialResponse) {
	t.Helper()
	start, err := h.svc.BeginAuthentication(context.Background(), testRP, username)
	require.NoError(t, err)
	return start.ChallengeID, credentialResponse(credentialID, protocol.AssertCeremony, start.Options.Challenge, testRP.Origin)
}
