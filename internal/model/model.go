package model

type DeviceType string

const (
	DeviceTypeSingle DeviceType = "singleDevice"
	DeviceTypeMulti  DeviceType = "multiDevice"
)

type Credential struct {
	ID             string     `json:"id"`
	PublicKey      string     `json:"publicKey"`
	Counter        uint32     `json:"counter"`
	Transports     []string   `json:"transports"`
	DeviceType     DeviceType `json:"deviceType"`
	BackedUp       bool       `json:"backedUp"`
	UserID         string     `json:"userId"`
	WebAuthnUserID string     `json:"webAuthnUserID,omitempty"`
	CreatedAt      int64      `json:"createdAt"`
	LastUsedAt     *int64     `json:"lastUsedAt,omitempty"`
}

// CredentialSummary is the redacted view handed to clients; it never
// carries key material.
type CredentialSummary struct {
	ID         string     `json:"id"`
	DeviceType DeviceType `json:"deviceType"`
	BackedUp   bool       `json:"backedUp"`
	CreatedAt  int64      `json:"createdAt"`
	LastUsedAt *int64     `json:"lastUsedAt,omitempty"`
}

func (c Credential) Summary() CredentialSummary {
	return CredentialSummary{
		ID:         c.ID,
		DeviceType: c.DeviceType,
		BackedUp:   c.BackedUp,
		CreatedAt:  c.CreatedAt,
		LastUsedAt: c.LastUsedAt,
	}
}

// Challenge is a single-use ceremony record. Registration challenges carry
// the username, token and user handle; authentication challenges may carry
// only the user id, or nothing in discoverable mode.
type Challenge struct {
	Challenge      string `json:"challenge"`
	UserID         string `json:"userId,omitempty"`
	Username       string `json:"username,omitempty"`
	Token          string `json:"token,omitempty"`
	WebAuthnUserID string `json:"webAuthnUserID,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

type ManagementToken struct {
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}
