package middleware

import (
	"context"
	"net/http"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/profile"
	"github.com/lakon-apparel/storefront/internal/errors"
	internalhttputil "github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/logging"
)

// RoleAdmin is placed on the context once the admin gate has passed.
const RoleAdmin = "admin"

// ProfileLookup loads the profile holding the admin flag.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
}

// AdminGate admits users whose profile carries the admin flag, or whose ID is
// on the configured allowlist. The flag is read on every request so revoking
// it takes effect immediately.
type AdminGate struct {
	profiles  ProfileLookup
	allowlist map[string]bool
	logger    *logging.Logger
}

// NewAdminGate creates the admin gate. It must run after authentication.
func NewAdminGate(profiles ProfileLookup, allowlist []string, logger *logging.Logger) *AdminGate {
	allowed := make(map[string]bool, len(allowlist))
	for _, id := range allowlist {
		allowed[id] = true
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AdminGate{profiles: profiles, allowlist: allowed, logger: logger}
}

// IsAdmin reports whether userID may use the back-office.
func (g *AdminGate) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if g.allowlist[userID] {
		return true, nil
	}
	p, err := g.profiles.GetProfile(ctx, userID)
	if database.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin, nil
}

// Handler returns the middleware handler function.
func (g *AdminGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := GetUserID(ctx)
		if userID == "" {
			internalhttputil.WriteError(w, r, errors.Unauthorized(""))
			return
		}

		ok, err := g.IsAdmin(ctx, userID)
		if err != nil {
			g.logger.WithContext(ctx).WithError(err).Error("admin check failed")
			internalhttputil.WriteError(w, r, errors.Unavailable("unable to verify admin access", err))
			return
		}
		if !ok {
			g.logger.LogSecurityEvent(ctx, "admin_access_denied", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			internalhttputil.WriteError(w, r, errors.Forbidden("admin access required"))
			return
		}

		next.ServeHTTP(w, r.WithContext(logging.WithRole(ctx, RoleAdmin)))
	})
}
