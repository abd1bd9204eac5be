package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthClient handles Supabase Auth (GoTrue) operations.
type AuthClient struct {
	client *Client
}

// SignUp creates a new user.
func (a *AuthClient) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	return a.tokenCall(ctx, "/signup", req)
}

// SignInWithPassword authenticates a user with email/password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.tokenCall(ctx, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshToken refreshes an access token.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	return a.tokenCall(ctx, "/token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (a *AuthClient) tokenCall(ctx context.Context, path string, payload interface{}) (*Session, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.request(ctx, http.MethodPost, a.client.authURL+path, body, nil)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, parseError(resp.body, resp.status)
	}

	var session Session
	if err := json.Unmarshal(resp.body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	// With email confirmation enabled, signup returns the bare user.
	if session.User == nil && session.AccessToken == "" {
		var user User
		if err := json.Unmarshal(resp.body, &user); err == nil && user.ID != "" {
			session.User = &user
		}
	}
	return &session, nil
}

// GetUser gets the user for an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := a.client.requestWithToken(ctx, http.MethodGet, a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, parseError(resp.body, resp.status)
	}

	var user User
	if err := json.Unmarshal(resp.body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	resp, err := a.client.requestWithToken(ctx, http.MethodPost, a.client.authURL+"/logout", nil, nil, accessToken)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return parseError(resp.body, resp.status)
	}
	return nil
}
