package passkey

import (
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// CeremonyTimeout is the client-side ceremony timeout in milliseconds.
const CeremonyTimeout = 60000

// RelyingParty identifies the site a ceremony is bound to. It is derived
// per request from the Host and Origin headers.
type RelyingParty struct {
	Name   string
	ID     string
	Origin string
}

// RegistrationOptions mirrors PublicKeyCredentialCreationOptions. It is
// declared here rather than reusing the protocol type so that an empty
// excludeCredentials list is still serialized.
type RegistrationOptions struct {
	RelyingParty           protocol.RelyingPartyEntity     `json:"rp"`
	User                   protocol.UserEntity             `json:"user"`
	Challenge              protocol.URLEncodedBase64       `json:"challenge"`
	Parameters             []protocol.CredentialParameter  `json:"pubKeyCredParams"`
	Timeout                int                             `json:"timeout"`
	Attestation            protocol.ConveyancePreference   `json:"attestation"`
	ExcludeCredentials     []protocol.CredentialDescriptor `json:"excludeCredentials"`
	AuthenticatorSelection protocol.AuthenticatorSelection `json:"authenticatorSelection"`
}

type AllowedCredential struct {
	ID         string                  `json:"id"`
	Type       protocol.CredentialType `json:"type"`
	Transports []string                `json:"transports"`
}

// AuthenticationOptions mirrors PublicKeyCredentialRequestOptions. An
// empty allowCredentials list asks for a discoverable credential.
type AuthenticationOptions struct {
	Challenge        protocol.URLEncodedBase64            `json:"challenge"`
	Timeout          int                                  `json:"timeout"`
	RelyingPartyID   string                               `json:"rpId"`
	UserVerification protocol.UserVerificationRequirement `json:"userVerification"`
	AllowCredentials []AllowedCredential                  `json:"allowCredentials"`
}

var credentialParameters = []protocol.CredentialParameter{
	{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
	{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
}

func registrationOptions(rp RelyingParty, username string, challenge []byte) RegistrationOptions {
	return RegistrationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: rp.Name},
			ID:               rp.ID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: username},
			DisplayName:      username,
			ID:               protocol.URLEncodedBase64(userHandle(username)),
		},
		Challenge:          protocol.URLEncodedBase64(challenge),
		Parameters:         credentialParameters,
		Timeout:            CeremonyTimeout,
		Attestation:        protocol.PreferNoAttestation,
		ExcludeCredentials: []protocol.CredentialDescriptor{},
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		},
	}
}

func authenticationOptions(rp RelyingParty, challenge []byte, allow []AllowedCredential) AuthenticationOptions {
	if allow == nil {
		allow = []AllowedCredential{}
	}
	return AuthenticationOptions{
		Challenge:        protocol.URLEncodedBase64(challenge),
		Timeout:          CeremonyTimeout,
		RelyingPartyID:   rp.ID,
		UserVerification: protocol.VerificationPreferred,
		AllowCredentials: allow,
	}
}
