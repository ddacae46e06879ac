package model

import "time"

// User is the passkey owner record stored under passkey:user:{id}.
// Timestamps are unix milliseconds so records stay readable by the
// edge-function deployment sharing the same namespace.
type User struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	Token              string   `json:"token"`
	CredentialIDs      []string `json:"credentialIds"`
	CurrentChallengeID string   `json:"currentChallengeId,omitempty"`
	CreatedAt          int64    `json:"createdAt"`
	UpdatedAt          int64    `json:"updatedAt,omitempty"`
}

func (u *User) HasCredential(id string) bool {
	for _, existing := range u.CredentialIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// AddCredential reports whether id was newly added.
func (u *User) AddCredential(id string) bool {
	if u.HasCredential(id) {
		return false
	}
	u.CredentialIDs = append(u.CredentialIDs, id)
	return true
}

// RemoveCredential reports whether id was present.
func (u *User) RemoveCredential(id string) bool {
	out := u.CredentialIDs[:0]
	removed := false
	for _, existing := range u.CredentialIDs {
		if existing == id {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	u.CredentialIDs = out
	return removed
}

func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
