package model

import "time"

// Store mirrors the 'stores' table. Role carries the querying identity's role
// at this store when the row was loaded through a membership join; it is
// empty for public reads.
type Store struct {
	ID          string
	OwnerUserID string
	Name        string
	Slug        string
	Role        Role
	CreatedAt   time.Time
}

// Member mirrors the 'store_members' table. PINHash is the bcrypt hash of
// the member's till PIN.
type Member struct {
	ID          string
	StoreID     string
	UserID      string
	Role        Role
	DisplayName string
	PINHash     string
	IsActive    bool
	CreatedAt   time.Time
}

// User mirrors the 'users' table (identity accounts, owner/manager sign-in).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
