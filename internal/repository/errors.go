// Package repository provides MySQL data access for identity accounts,
// stores, memberships and refresh tokens. Sentinel errors let handlers map
// failure modes to HTTP statuses without string matching.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Handlers
// translate it into a 404.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registration collides with an existing
// account. Handlers translate it into a 409.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidPIN is returned when no active member of the store matches the
// presented PIN. Translated into a 401; the response never reveals whether
// the store or the PIN was wrong.
var ErrInvalidPIN = errors.New("invalid pin")
