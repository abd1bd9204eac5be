package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lakon-apparel/storefront/internal/checkout"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/middleware"
)

// maxNotificationBytes bounds webhook bodies.
const maxNotificationBytes = 64 << 10

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	id, err := h.cartID(w, r, false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if id == "" {
		httputil.WriteError(w, r, svcerrors.BadRequest("cart is empty"))
		return
	}
	req.CartID = id
	req.UserID = middleware.GetUserID(r.Context())

	res, err := h.svc.Checkout.Checkout(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *handler) trackOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Checkout.Track(r.Context(), mux.Vars(r)["number"], r.URL.Query().Get("phone"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) paymentNotification(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadAllStrict(r.Body, maxNotificationBytes)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.BadRequest("notification body too large"))
		return
	}
	res, err := h.svc.Checkout.HandleNotification(r.Context(), body)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
