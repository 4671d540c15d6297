package model

import (
	"time"
)

// AuthType classifies the current authentication state of a device scope.
// Exactly one of the three values applies at any time; a live PIN session
// always wins over a backgrounded identity session because it represents
// the physically present actor at a shared till.
type AuthType string

const (
	AuthNone     AuthType = "none"
	AuthIdentity AuthType = "identity"
	AuthPin      AuthType = "pin"
)

// Identity is the long-lived authenticated principal (an owner/manager
// account). It is read-only from the session core's perspective: issuance
// and expiry are the auth layer's business.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PinSession is a short-lived principal bound to exactly one store, created
// by the till PIN pad. The JSON field names are the persisted wire shape and
// must not change without a migration of stored records.
type PinSession struct {
	MemberID     string    `json:"member_id"`
	UserID       string    `json:"user_id"` // owning account that set up the till
	StoreID      string    `json:"store_id"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	StoreName    string    `json:"store_name"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session's absolute expiry has passed.
func (p *PinSession) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Remaining returns the time left until expiry; zero or negative means expired.
func (p *PinSession) Remaining(now time.Time) time.Duration {
	return p.ExpiresAt.Sub(now)
}

// StoreSelection records which store an identity-authenticated user last
// chose. UserID guards against cross-account reuse: a selection persisted
// under a different identity must be discarded, never reassigned. An empty
// UserID marks a record decoded from the legacy bare-string format; such a
// selection may only be adopted when the store shows up in the identity's
// own store list, and is rewritten in the current format on adoption.
type StoreSelection struct {
	StoreID   string    `json:"storeId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Legacy reports whether the record came from the pre-multi-account format.
func (s *StoreSelection) Legacy() bool { return s.UserID == "" }
