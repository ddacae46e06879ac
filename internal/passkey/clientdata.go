package passkey

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
)

// AuthenticatorResponse is the inner response object produced by the
// browser. Binary members stay base64url strings; only clientDataJSON is
// decoded server-side.
type AuthenticatorResponse struct {
	ClientDataJSON    string   `json:"clientDataJSON" validate:"required"`
	AttestationObject string   `json:"attestationObject,omitempty"`
	AuthenticatorData string   `json:"authenticatorData,omitempty"`
	Signature         string   `json:"signature,omitempty"`
	UserHandle        string   `json:"userHandle,omitempty"`
	Transports        []string `json:"transports,omitempty"`
}

// CredentialResponse is the PublicKeyCredential serialized by the client.
type CredentialResponse struct {
	ID                      string                `json:"id" validate:"required"`
	RawID                   string                `json:"rawId,omitempty"`
	Type                    string                `json:"type,omitempty"`
	AuthenticatorAttachment string                `json:"authenticatorAttachment,omitempty"`
	Response                AuthenticatorResponse `json:"response"`
}

// decodeBase64URL accepts unpadded or padded base64url, and standard
// base64 as sent by some older clients.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

func parseClientData(raw string) (*protocol.CollectedClientData, error) {
	b, err := decodeBase64URL(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientData, err)
	}
	var cd protocol.CollectedClientData
	if err := json.Unmarshal(b, &cd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientData, err)
	}
	return &cd, nil
}

// verifyClientData checks challenge, origin and ceremony type, in that
// order. Signatures and attestation statements are not verified.
func verifyClientData(resp *CredentialResponse, challenge string, rp RelyingParty, ceremony protocol.CeremonyType) error {
	cd, err := parseClientData(resp.Response.ClientDataJSON)
	if err != nil {
		return verificationFailed(err)
	}
	if cd.Challenge != challenge {
		return verificationFailed(ErrChallengeMismatch)
	}
	if cd.Origin != rp.Origin {
		return verificationFailed(fmt.Errorf("%w: expected %s, got %s", ErrOriginMismatch, rp.Origin, cd.Origin))
	}
	if cd.Type != ceremony {
		return verificationFailed(fmt.Errorf("%w: %s", ErrInvalidOperationType, cd.Type))
	}
	return nil
}
