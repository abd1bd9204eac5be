package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/logging"
)

func TestAdminGate(t *testing.T) {
	repo := database.NewMockRepository()
	repo.SetAdmin("admin-1", true)
	repo.SetAdmin("shopper-1", false)
	gate := NewAdminGate(repo, []string{"owner-1"}, logging.NewNop())
	h := gate.Handler(echoUser)

	request := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
		if userID != "" {
			req = req.WithContext(logging.WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		user   string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"admin-1", http.StatusOK},
		{"owner-1", http.StatusOK},
		{"shopper-1", http.StatusForbidden},
		{"stranger", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run("user="+tt.user, func(t *testing.T) {
			assert.Equal(t, tt.status, request(tt.user).Code)
		})
	}

	rec := request("admin-1")
	assert.Equal(t, RoleAdmin, decodeBody(t, rec)["role"])

	repo.SetAdmin("admin-1", false)
	assert.Equal(t, http.StatusForbidden, request("admin-1").Code, "flag is read per request")

	repo.ErrorOnNextCall = errors.New("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, request("shopper-1").Code)
}
