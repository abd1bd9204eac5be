package httpapi

import (
	"net/http"

	"github.com/lakon-apparel/storefront/internal/account"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	"github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/logging"
	"github.com/lakon-apparel/storefront/internal/middleware"
)

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var in account.SignUpInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	sess, err := h.svc.Accounts.SignUp(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess)
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	sess, err := h.svc.Accounts.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	sess, err := h.svc.Accounts.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Accounts.SignOut(r.Context(), middleware.GetAccessToken(r.Context())); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	me, err := h.svc.Accounts.Me(ctx, middleware.GetUserID(ctx), logging.GetEmail(ctx))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, me)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var in account.ProfileInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	me, err := h.svc.Accounts.UpdateProfile(ctx, middleware.GetUserID(ctx), logging.GetEmail(ctx), in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, me)
}

func (h *handler) myOrders(w http.ResponseWriter, r *http.Request) {
	pageNo, err := queryInt(r, "page")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	f := order.Filter{Page: pageNo, PerPage: perPage}.Normalize()
	items, total, err := h.svc.Checkout.CustomerOrders(r.Context(), middleware.GetUserID(r.Context()), f.Page, f.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newPage(items, total, f.Page, f.PerPage))
}
