package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/storefy/storefy/internal/model"
)

// StoreRepo loads stores and the caller's role at each. It satisfies
// resolver.StoreDirectory.
type StoreRepo struct{ DB *sql.DB }

func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{DB: db} }

// ListStoresForIdentity returns every store the user is an active member
// of, with the membership role attached. Order is stable so a store picker
// renders deterministically.
func (r *StoreRepo) ListStoresForIdentity(ctx context.Context, userID string) ([]model.Store, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT s.id, s.owner_user_id, s.name, s.slug, m.role, s.created_at
		   FROM stores s
		   JOIN store_members m ON m.store_id = s.id
		  WHERE m.user_id = ? AND m.is_active = 1
		  ORDER BY s.created_at, s.id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []model.Store
	for rows.Next() {
		var st model.Store
		var role string
		if err := rows.Scan(&st.ID, &st.OwnerUserID, &st.Name, &st.Slug, &role, &st.CreatedAt); err != nil {
			return nil, err
		}
		// The tenant owner always acts as owner, whatever the membership
		// row says; the two can drift when staff roles are edited.
		if st.OwnerUserID == userID {
			st.Role = model.RoleOwner
		} else if parsed, err := model.ParseRole(role); err == nil {
			st.Role = parsed
		} else {
			continue // unknown role value: fail closed, hide the store
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

// GetStoreByID returns the store, or (nil, nil) when it does not exist.
// Errors mean the backend itself failed.
func (r *StoreRepo) GetStoreByID(ctx context.Context, id string) (*model.Store, error) {
	var st model.Store
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, owner_user_id, name, slug, created_at FROM stores WHERE id=? LIMIT 1",
		id).Scan(&st.ID, &st.OwnerUserID, &st.Name, &st.Slug, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStoreBySlug returns the public storefront row for a slug.
func (r *StoreRepo) GetStoreBySlug(ctx context.Context, slug string) (*model.Store, error) {
	var st model.Store
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, owner_user_id, name, slug, created_at FROM stores WHERE slug=? LIMIT 1",
		slug).Scan(&st.ID, &st.OwnerUserID, &st.Name, &st.Slug, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
