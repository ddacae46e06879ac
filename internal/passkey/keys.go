package passkey

import (
	"crypto/sha256"
	"encoding/base64"
)

const (
	userKeyPrefix       = "passkey:user:"
	credentialKeyPrefix = "passkey:credential:"
	challengeKeyPrefix  = "passkey:challenge:"
	mgmtTokenKeyPrefix  = "passkey:mgmt_token:"

	userIDDomain = "open-kounter-passkey:"
)

func userKey(id string) string       { return userKeyPrefix + id }
func credentialKey(id string) string { return credentialKeyPrefix + id }
func challengeKey(id string) string  { return challengeKeyPrefix + id }
func mgmtTokenKey(id string) string  { return mgmtTokenKeyPrefix + id }

// userHandle is the stable WebAuthn user handle for username.
func userHandle(username string) []byte {
	sum := sha256.Sum256([]byte(userIDDomain + username))
	return sum[:]
}

// UserID derives the storage id of username. It is deterministic and not
// reversible, so the same username always resolves to the same record.
func UserID(username string) string {
	return base64.RawURLEncoding.EncodeToString(userHandle(username))
}
