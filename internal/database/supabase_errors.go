package database

import (
	"fmt"

	"github.com/lakon-apparel/storefront/infra/supabase"
)

// wrapErr classifies a PostgREST failure under the package sentinels.
func wrapErr(op string, err error) error {
	switch {
	case supabase.IsNotFound(err):
		return fmt.Errorf("%w: %s: %v", ErrNotFound, op, err)
	case supabase.IsConflict(err):
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
}
