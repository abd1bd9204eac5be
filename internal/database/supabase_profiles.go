package database

import (
	"context"
	"fmt"

	"github.com/lakon-apparel/storefront/internal/domain/profile"
)

// GetProfile fetches the profile row for a user.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	var rows []profile.Profile
	if err := r.from("profiles").Eq("id", userID).Limit(1).ExecuteInto(ctx, &rows); err != nil {
		return nil, wrapErr("get profile", err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("profile", userID)
	}
	return &rows[0], nil
}

// UpsertProfile creates or updates a profile. The admin flag is never
// written here; it is managed directly in the database.
func (r *Repository) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(p.ID); err != nil {
		return err
	}

	p.UpdatedAt = r.now().UTC()

	row := map[string]interface{}{
		"id":         p.ID,
		"full_name":  SanitizeProfileText(p.FullName),
		"phone":      p.Phone,
		"updated_at": p.UpdatedAt,
	}

	var rows []profile.Profile
	if err := r.from("profiles").Upsert(row, "id").ExecuteInto(ctx, &rows); err != nil {
		return wrapErr("upsert profile", err)
	}
	if len(rows) > 0 {
		p.IsAdmin = rows[0].IsAdmin
		p.CreatedAt = rows[0].CreatedAt
	}
	return nil
}

// SanitizeProfileText trims control characters from free text.
func SanitizeProfileText(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 0x20 {
			out = append(out, r)
		}
	}
	return string(out)
}
