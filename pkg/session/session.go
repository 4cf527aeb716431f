package session

import (
	"time"
)

// Tier is the trust level of an issued session.
type Tier string

const (
	// TierEphemeral is the short-lived session issued after second-factor
	// verification.
	TierEphemeral Tier = "ephemeral"

	// TierTrustedDevice is the long-lived session issued on explicit
	// trusted-device registration. A deliberate lower-assurance path: it
	// bypasses the second factor by design.
	TierTrustedDevice Tier = "trusted-device"
)

// Cookie names on the client.
const (
	AuthTokenCookie = "auth_token"
	LocaleCookie    = "NEXT_LOCALE"
)

// Session is the credential issued after successful verification. For the
// demo/local paths the token itself is the state: expiry is derivable from
// the issuance tier without a server round-trip, and there is no server-side
// revocation list.
type Session struct {
	Token     string    `json:"token"`
	Tier      Tier      `json:"tier"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt reports whether the session is unexpired at t. Validity is a pure
// expiry comparison.
func (s Session) ValidAt(t time.Time) bool {
	return s.Token != "" && t.Before(s.ExpiresAt)
}

// Valid reports whether the session is unexpired now.
func (s Session) Valid() bool {
	return s.ValidAt(time.Now().UTC())
}
