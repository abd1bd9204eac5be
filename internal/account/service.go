// Package account wraps Supabase Auth sign-up, sign-in and session refresh,
// and manages the shopper's profile row.
package account

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/lakon-apparel/storefront/infra/supabase"
	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	"github.com/lakon-apparel/storefront/internal/domain/profile"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/logging"
)

// MinPasswordLength mirrors the Supabase Auth default.
const MinPasswordLength = 8

// Authenticator is the subset of Supabase Auth the storefront calls.
type Authenticator interface {
	SignUp(ctx context.Context, req supabase.SignUpRequest) (*supabase.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AdminChecker resolves the admin flag the same way the admin routes do.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Service handles accounts and profiles.
type Service struct {
	auth     Authenticator
	profiles database.ProfileStore
	admins   AdminChecker
	log      *logging.Logger
}

// New creates the account service. auth may be nil when no Supabase project
// is configured; the auth operations then report the service unavailable.
func New(auth Authenticator, profiles database.ProfileStore, admins AdminChecker, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{auth: auth, profiles: profiles, admins: admins, log: log}
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Session is returned by sign-up, sign-in and refresh. Tokens are empty when
// the project requires email confirmation before the first sign-in.
type Session struct {
	AccessToken          string `json:"access_token,omitempty"`
	RefreshToken         string `json:"refresh_token,omitempty"`
	ExpiresIn            int    `json:"expires_in,omitempty"`
	UserID               string `json:"user_id"`
	Email                string `json:"email"`
	ConfirmationRequired bool   `json:"confirmation_required"`
}

func newSession(s *supabase.Session) *Session {
	out := &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
	}
	if s.User != nil {
		out.UserID = s.User.ID
		out.Email = s.User.Email
	}
	out.ConfirmationRequired = s.AccessToken == ""
	return out
}

func (s *Service) available() error {
	if s.auth == nil {
		return svcerrors.Unavailable("authentication is not configured", nil)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", svcerrors.Validation("email", "email is invalid")
	}
	return email, nil
}

// SignUp registers a shopper and creates their profile.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, svcerrors.Validation("password", "password must be at least 8 characters")
	}
	phone := ""
	if strings.TrimSpace(in.Phone) != "" {
		if phone, err = order.NormalizePhone(in.Phone); err != nil {
			return nil, svcerrors.Validation("phone", err.Error())
		}
	}
	fullName := strings.TrimSpace(in.FullName)

	sess, err := s.auth.SignUp(ctx, supabase.SignUpRequest{
		Email:    email,
		Password: in.Password,
		Data:     map[string]interface{}{"full_name": fullName},
	})
	if err != nil {
		return nil, s.authError(ctx, "sign up", err)
	}

	out := newSession(sess)
	if out.UserID != "" {
		p := &profile.Profile{ID: out.UserID, FullName: fullName, Phone: phone}
		if err := s.profiles.UpsertProfile(ctx, p); err != nil {
			// The auth user exists; the profile is recreated on the next update.
			s.log.WithContext(ctx).WithError(err).WithField("user_id", out.UserID).Warn("failed to create profile")
		}
	}
	s.log.WithContext(ctx).WithField("user_id", out.UserID).Info("shopper signed up")
	return out, nil
}

// SignIn exchanges email and password for a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, svcerrors.BadRequest("email and password are required")
	}
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, s.authError(ctx, "sign in", err)
	}
	return newSession(sess), nil
}

// Refresh exchanges a refresh token for a new session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, svcerrors.BadRequest("refresh_token is required")
	}
	sess, err := s.auth.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, s.authError(ctx, "refresh", err)
	}
	return newSession(sess), nil
}

// SignOut revokes the session. An already revoked token is not an error.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if err := s.available(); err != nil {
		return err
	}
	err := s.auth.SignOut(ctx, accessToken)
	if err == nil {
		return nil
	}
	switch supabase.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil
	}
	return s.authError(ctx, "sign out", err)
}

// authError maps Supabase Auth failures. 4xx responses are the caller's
// fault and keep the upstream message; anything else is an outage.
func (s *Service) authError(ctx context.Context, op string, err error) error {
	status := supabase.StatusCode(err)
	switch {
	case status == http.StatusBadRequest && op == "sign in",
		status == http.StatusUnauthorized:
		return svcerrors.Unauthorized("invalid email or password")
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		var se *supabase.Error
		msg := "request rejected"
		if errors.As(err, &se) && se.Message != "" {
			msg = se.Message
		}
		return svcerrors.BadRequest(msg)
	case status == http.StatusTooManyRequests:
		return svcerrors.RateLimitExceeded(0, "auth")
	}
	s.log.WithContext(ctx).WithError(err).WithField("op", op).Error("supabase auth call failed")
	return svcerrors.Unavailable("authentication service unavailable", err)
}

// Me is the signed-in shopper's view of themselves.
type Me struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
}

// Me returns the profile of the authenticated user. A missing profile row
// yields an empty one.
func (s *Service) Me(ctx context.Context, userID, email string) (*Me, error) {
	if userID == "" {
		return nil, svcerrors.Unauthorized("")
	}
	me := &Me{ID: userID, Email: email}
	p, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		me.FullName, me.Phone = p.FullName, p.Phone
	case !database.IsNotFound(err):
		return nil, s.storeError(ctx, "get profile", err)
	}

	if s.admins != nil {
		isAdmin, err := s.admins.IsAdmin(ctx, userID)
		if err != nil {
			return nil, s.storeError(ctx, "check admin", err)
		}
		me.IsAdmin = isAdmin
	} else if p != nil {
		me.IsAdmin = p.IsAdmin
	}
	return me, nil
}

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// UpdateProfile saves the shopper's name and phone. The admin flag is never
// written through this path.
func (s *Service) UpdateProfile(ctx context.Context, userID, email string, in ProfileInput) (*Me, error) {
	if userID == "" {
		return nil, svcerrors.Unauthorized("")
	}
	name := strings.TrimSpace(in.FullName)
	if len(name) > 120 {
		return nil, svcerrors.Validation("full_name", "full name is too long")
	}
	phone := ""
	if strings.TrimSpace(in.Phone) != "" {
		var err error
		if phone, err = order.NormalizePhone(in.Phone); err != nil {
			return nil, svcerrors.Validation("phone", err.Error())
		}
	}

	if err := s.profiles.UpsertProfile(ctx, &profile.Profile{ID: userID, FullName: name, Phone: phone}); err != nil {
		return nil, s.storeError(ctx, "save profile", err)
	}
	return s.Me(ctx, userID, email)
}

func (s *Service) storeError(ctx context.Context, op string, err error) error {
	if database.IsInvalidInput(err) {
		return svcerrors.BadRequest(err.Error())
	}
	s.log.WithContext(ctx).WithError(err).WithField("op", op).Error("profile store failed")
	return svcerrors.Internal("failed to "+op, err)
}
