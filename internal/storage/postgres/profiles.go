package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/profile"
)

// GetProfile fetches the profile row for a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if err := database.ValidateUserID(userID); err != nil {
		return nil, err
	}
	var p profile.Profile
	err := s.db.GetContext(ctx, &p, `SELECT id, full_name, phone, is_admin, created_at, updated_at
		FROM profiles WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewNotFoundError("profile", userID)
	}
	if err != nil {
		return nil, wrapErr("get profile", err)
	}
	return &p, nil
}

// UpsertProfile creates or updates a profile. The admin flag is never
// written here.
func (s *Store) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile cannot be nil", database.ErrInvalidInput)
	}
	if err := database.ValidateUserID(p.ID); err != nil {
		return err
	}
	p.FullName = database.SanitizeProfileText(p.FullName)
	p.UpdatedAt = s.now().UTC()

	row := s.db.QueryRowxContext(ctx, `INSERT INTO profiles (id, full_name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
		RETURNING is_admin, created_at`, p.ID, p.FullName, p.Phone, p.UpdatedAt)
	if err := row.Scan(&p.IsAdmin, &p.CreatedAt); err != nil {
		return wrapErr("upsert profile", err)
	}
	return nil
}
