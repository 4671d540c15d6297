package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/utils"
)

// MemberRepo provides access to store_members, including till PIN
// verification.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

// VerifyPIN finds the active member of the store whose bcrypt PIN hash
// matches the presented PIN. The PIN identifies the member at the till, so
// hashes are compared member by member; returns ErrInvalidPIN when nothing
// matches.
func (r *MemberRepo) VerifyPIN(ctx context.Context, storeID, pin string) (*model.Member, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, store_id, user_id, role, display_name, pin_hash, is_active, created_at
		   FROM store_members
		  WHERE store_id = ? AND is_active = 1 AND pin_hash <> ''`,
		storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Member
		var role string
		if err := rows.Scan(&m.ID, &m.StoreID, &m.UserID, &role, &m.DisplayName, &m.PINHash, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		if !utils.VerifyPIN(m.PINHash, pin) {
			continue
		}
		parsed, err := model.ParseRole(role)
		if err != nil {
			continue // unknown role: fail closed
		}
		m.Role = parsed
		return &m, nil
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrInvalidPIN
}

// GetByStoreAndUser returns the membership row linking a user to a store.
func (r *MemberRepo) GetByStoreAndUser(ctx context.Context, storeID, userID string) (*model.Member, error) {
	var m model.Member
	var role string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, store_id, user_id, role, display_name, pin_hash, is_active, created_at
		   FROM store_members
		  WHERE store_id = ? AND user_id = ? LIMIT 1`,
		storeID, userID).Scan(&m.ID, &m.StoreID, &m.UserID, &role, &m.DisplayName, &m.PINHash, &m.IsActive, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	parsed, perr := model.ParseRole(role)
	if perr != nil {
		return nil, perr
	}
	m.Role = parsed
	return &m, nil
}
