package models

import "time"

// Credential status values shown to administrators.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
	StatusExpired = "expired"
	StatusUsed    = "used"
)

// Credential is one issued access key. The plaintext is never stored;
// only its digest and a short display hint are persisted.
type Credential struct {
	ID         int64      `db:"id"              json:"id"`
	Hash       string     `db:"credential_hash" json:"-"`
	Hint       string     `db:"display_hint"    json:"hint"`
	IssuedTo   string     `db:"issued_to"       json:"issued_to,omitempty"`
	Tag        string     `db:"tag"             json:"tag,omitempty"`
	OneTime    bool       `db:"one_time"        json:"one_time"`
	IssuedAt   time.Time  `db:"issued_at"       json:"issued_at"`
	ExpiresAt  *time.Time `db:"expires_at"      json:"expires_at,omitempty"`
	UsedCount  int        `db:"used_count"      json:"used_count"`
	LastUsedAt *time.Time `db:"last_used_at"    json:"last_used_at,omitempty"`
	Revoked    bool       `db:"revoked"         json:"revoked"`
}

// Expired reports whether now is past the expiry. Credentials without an
// expiry never expire.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Exhausted reports whether a one-time credential has been consumed.
func (c *Credential) Exhausted() bool {
	return c.OneTime && c.UsedCount >= 1
}

// Status summarises the terminal states for display. Precedence is
// revoked, expired, used, active.
func (c *Credential) Status(now time.Time) string {
	switch {
	case c.Revoked:
		return StatusRevoked
	case c.Expired(now):
		return StatusExpired
	case c.Exhausted():
		return StatusUsed
	default:
		return StatusActive
	}
}

// IssuedCredential is returned exactly once, at issuance. It is the only
// place the plaintext ever appears.
type IssuedCredential struct {
	ID        int64      `json:"id"`
	Plaintext string     `json:"access_key"`
	Hint      string     `json:"hint"`
	IssuedTo  string     `json:"issued_to,omitempty"`
	Tag       string     `json:"tag,omitempty"`
	OneTime   bool       `json:"one_time"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
