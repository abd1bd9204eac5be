package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lakon-apparel/storefront/internal/cart"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/middleware"
)

const (
	cartCookie = "cart_id"
	cartHeader = "X-Cart-ID"
	cartMaxAge = 7 * 24 * time.Hour
)

// userCartID is the cart key of a signed-in shopper.
func userCartID(userID string) string {
	return "user:" + userID
}

// guestCartID reads the guest cart from the header or cookie. Anything that
// is not a UUID is ignored.
func guestCartID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(cartHeader))
	if id == "" {
		if c, err := r.Cookie(cartCookie); err == nil {
			id = c.Value
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

func (h *handler) setCartCookie(w http.ResponseWriter, id string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     cartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if id != "" {
		w.Header().Set(cartHeader, id)
	}
}

// cartID resolves the request's cart. Signed-in shoppers use their account
// cart and absorb a guest cart still held in the cookie. Guests without a
// cart get a new ID when create is set; otherwise "" is returned.
func (h *handler) cartID(w http.ResponseWriter, r *http.Request, create bool) (string, error) {
	guest := guestCartID(r)
	userID := middleware.GetUserID(r.Context())

	if userID == "" {
		if guest == "" && create {
			guest = uuid.NewString()
			h.setCartCookie(w, guest, cartMaxAge)
		}
		return guest, nil
	}

	id := userCartID(userID)
	if guest != "" {
		if _, err := h.svc.Carts.Merge(r.Context(), guest, id); err != nil {
			return "", err
		}
		h.setCartCookie(w, "", -time.Second)
	}
	return id, nil
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, err := h.cartID(w, r, false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if id == "" {
		httputil.WriteJSON(w, http.StatusOK, cart.NewView(cart.New("", h.svc.Carts.Rules()), nil))
		return
	}
	view, err := h.svc.Carts.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cart.AddItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	id, err := h.cartID(w, r, true)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	view, err := h.svc.Carts.AddItem(r.Context(), id, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

type updateItemRequest struct {
	cart.ItemKey
	Quantity int `json:"quantity"`
}

func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
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
		httputil.WriteError(w, r, svcerrors.NotFound("cart item", req.ProductID))
		return
	}
	view, err := h.svc.Carts.UpdateItem(r.Context(), id, req.ItemKey, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := cart.ItemKey{ProductID: q.Get("product_id"), Size: q.Get("size"), Color: q.Get("color")}
	if key.ProductID == "" {
		httputil.WriteError(w, r, svcerrors.BadRequest("product_id, size and color are required"))
		return
	}
	id, err := h.cartID(w, r, false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if id == "" {
		httputil.WriteError(w, r, svcerrors.NotFound("cart item", key.ProductID))
		return
	}
	view, err := h.svc.Carts.RemoveItem(r.Context(), id, key)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, err := h.cartID(w, r, false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if id != "" {
		if err := h.svc.Carts.Clear(r.Context(), id); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
