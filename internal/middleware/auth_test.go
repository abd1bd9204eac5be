package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalhttputil "github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/logging"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func generateTestToken(t *testing.T, secret, userID string, expiresIn time.Duration) string {
	t.Helper()
	claims := &Claims{
		Email: "rani@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

// echoUser writes the authenticated identity back.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	internalhttputil.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": GetUserID(r.Context()),
		"role":    GetUserRole(r.Context()),
		"email":   logging.GetEmail(r.Context()),
		"token":   GetAccessToken(r.Context()),
	})
})

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware_Required(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logging.NewNop())
	h := m.Required(echoUser)
	valid := generateTestToken(t, testSecret, "user-1", time.Hour)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + generateTestToken(t, testSecret, "user-1", -time.Hour), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + generateTestToken(t, "another-secret", "user-1", time.Hour), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"no subject", "Bearer " + generateTestToken(t, testSecret, "", time.Hour), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.header)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
				return
			}
			assert.Equal(t, "user-1", body["user_id"])
			assert.Equal(t, "authenticated", body["role"])
			assert.Equal(t, "rani@example.com", body["email"])
			assert.Equal(t, valid, body["token"])
		})
	}
}

func TestAuthMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logging.NewNop())
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(m.Required(echoUser), "Bearer "+none).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(m.Required(echoUser), "Bearer "+hs512).Code)
}

func TestAuthMiddleware_TokenWithoutExpiryRejected(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logging.NewNop())
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(m.Required(echoUser), "Bearer "+token).Code)
}

func TestAuthMiddleware_Optional(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logging.NewNop())
	h := m.Optional(echoUser)

	anon := serve(h, "")
	require.Equal(t, http.StatusOK, anon.Code)
	assert.Equal(t, "", decodeBody(t, anon)["user_id"])

	authed := serve(h, "Bearer "+generateTestToken(t, testSecret, "user-2", time.Hour))
	require.Equal(t, http.StatusOK, authed.Code)
	assert.Equal(t, "user-2", decodeBody(t, authed)["user_id"])

	bad := serve(h, "Bearer "+generateTestToken(t, testSecret, "user-2", -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, bad.Code, "a stale token is not silently downgraded")
}

func TestAuthMiddleware_EmptySecretRejectsEverything(t *testing.T) {
	m := NewAuthMiddleware("", logging.NewNop())
	rec := serve(m.Required(echoUser), "Bearer "+generateTestToken(t, "", "user-1", time.Hour))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserID(t *testing.T) {
	rec := serve(RequireUserID(echoUser), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.WithUserID(req.Context(), "user-1"))
	rec = httptest.NewRecorder()
	RequireUserID(echoUser).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logging.NewNop())
	token := generateTestToken(t, testSecret, "admin-1", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/feed?access_token="+token, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	m.Required(echoUser).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", decodeBody(t, rec)["user_id"])

	plain := httptest.NewRequest(http.MethodGet, "/api/v1/me?access_token="+token, nil)
	rec = httptest.NewRecorder()
	m.Required(echoUser).ServeHTTP(rec, plain)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query tokens only for websocket handshakes")
}
