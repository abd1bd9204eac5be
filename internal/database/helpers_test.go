package database

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lakon-apparel/storefront/infra/supabase"
)

func newClientWithHandler(t *testing.T, handler http.Handler) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, ServiceKey: "service"})
	if err != nil {
		t.Fatalf("supabase.New: %v", err)
	}
	return client
}

func newTestRepository(t *testing.T, handler http.Handler) *Repository {
	t.Helper()
	repo := NewRepository(newClientWithHandler(t, handler))
	repo.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return repo
}
