// Package queue defines message payloads exchanged over the message broker.
package queue

// Session change kinds.
const (
	SessionSignedOut     = "signed_out"
	SessionStoreSelected = "store_selected"
	SessionPinEnded      = "pin_ended"
	SessionPinExpired    = "pin_expired"
)

// SessionChangedEvent is broadcast whenever a device scope's session state
// changes: sign-out, explicit store switch, PIN session end or expiry. Other
// gateway instances consume it to drop their cached resolution for the
// scope, so two tabs or two load-balanced instances converge on the same
// session state instead of serving a stale one.
type SessionChangedEvent struct {
	Scope      string `json:"scope"`
	Kind       string `json:"kind"`
	UserID     string `json:"user_id,omitempty"`
	StoreID    string `json:"store_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
