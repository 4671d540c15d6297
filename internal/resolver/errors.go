package resolver

import (
	"errors"
	"fmt"
)

// ErrNotMember is returned when an identity tries to select a store it has
// no membership in. Handlers translate it into a 403.
var ErrNotMember = errors.New("not a member of store")

// ErrNoIdentity is returned when an operation that needs an identity session
// is attempted without one.
var ErrNoIdentity = errors.New("identity session required")

// StoreLoadError wraps a backend failure while listing or loading stores.
// It is the only error class that reaches the sequencer's error phase and a
// visible retry UI; everything else the resolvers detect (stale selections,
// expired PIN sessions, corrupt records) is an expected transition handled
// silently where it is found.
type StoreLoadError struct {
	Op  string
	Err error
}

func (e *StoreLoadError) Error() string {
	return fmt.Sprintf("store load failed: %s: %v", e.Op, e.Err)
}

func (e *StoreLoadError) Unwrap() error { return e.Err }
