// Package httpapi exposes the storefront and back-office JSON API.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lakon-apparel/storefront/internal/account"
	"github.com/lakon-apparel/storefront/internal/admin"
	"github.com/lakon-apparel/storefront/internal/cart"
	"github.com/lakon-apparel/storefront/internal/catalog"
	"github.com/lakon-apparel/storefront/internal/checkout"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/logging"
	"github.com/lakon-apparel/storefront/internal/middleware"
)

// Pinger reports backend reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services behind the API.
type Services struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Checkout *checkout.Service
	Accounts *account.Service
	Admin    *admin.Service
	// Feed streams order events to the back-office.
	Feed http.Handler
	DB   Pinger
}

// Options configure the middleware chain.
type Options struct {
	Logger      *logging.Logger
	Auth        *middleware.AuthMiddleware
	AdminGate   *middleware.AdminGate
	CORS        *middleware.CORSMiddleware
	RateLimiter *middleware.RateLimiter
	Metrics     http.Handler
	// SecureCookies marks the cart cookie Secure; set behind TLS.
	SecureCookies bool
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	svc           Services
	log           *logging.Logger
	secureCookies bool
}

// NewHandler returns the router exposing the REST API.
func NewHandler(svc Services, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	h := &handler{svc: svc, log: opts.Logger, secureCookies: opts.SecureCookies}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, svcerrors.New(svcerrors.CodeNotFound, "route not found", http.StatusNotFound))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, svcerrors.New(svcerrors.CodeBadRequest, "method not allowed", http.StatusMethodNotAllowed))
	})

	r.Use(middleware.NewTracingMiddleware(opts.Logger).Handler, middleware.Recover(opts.Logger), middleware.MetricsMiddleware())
	if opts.CORS != nil {
		r.Use(opts.CORS.Handler)
	}

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	// CORS preflights carry no route method; answer them before method matching.
	// A MatcherFunc keeps unknown paths at 404 rather than 405.
	api.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// The webhook is authenticated by its signature, not a user token.
	api.HandleFunc("/payments/notification", h.paymentNotification).Methods(http.MethodPost)

	shop := api.NewRoute().Subrouter()
	if opts.Auth != nil {
		shop.Use(opts.Auth.Optional)
	}
	if opts.RateLimiter != nil {
		shop.Use(opts.RateLimiter.Handler)
	}

	shop.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	shop.HandleFunc("/products/{idOrSlug}", h.getProduct).Methods(http.MethodGet)
	shop.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)

	shop.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	shop.HandleFunc("/cart", h.clearCart).Methods(http.MethodDelete)
	shop.HandleFunc("/cart/items", h.addCartItem).Methods(http.MethodPost)
	shop.HandleFunc("/cart/items", h.updateCartItem).Methods(http.MethodPatch)
	shop.HandleFunc("/cart/items", h.removeCartItem).Methods(http.MethodDelete)

	shop.HandleFunc("/checkout", h.checkout).Methods(http.MethodPost)
	shop.HandleFunc("/orders/{number}", h.trackOrder).Methods(http.MethodGet)

	shop.HandleFunc("/auth/signup", h.signUp).Methods(http.MethodPost)
	shop.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	shop.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	shop.Handle("/auth/signout", middleware.RequireUserID(http.HandlerFunc(h.signOut))).Methods(http.MethodPost)

	me := shop.PathPrefix("/me").Subrouter()
	me.Use(middleware.RequireUserID)
	me.HandleFunc("", h.me).Methods(http.MethodGet)
	me.HandleFunc("", h.updateMe).Methods(http.MethodPut)
	me.HandleFunc("/orders", h.myOrders).Methods(http.MethodGet)

	if svc.Admin != nil {
		adm := shop.PathPrefix("/admin").Subrouter()
		adm.Use(middleware.RequireUserID)
		if opts.AdminGate != nil {
			adm.Use(opts.AdminGate.Handler)
		}
		h.adminRoutes(adm)
	}

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.svc.DB != nil {
		if err := h.svc.DB.Ping(r.Context()); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("health check failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcerrors.BadRequest(name + " must be an integer")
	}
	return v, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, svcerrors.BadRequest(name + " must be a non-negative integer")
	}
	return v, nil
}

// page is the paging envelope for list responses.
type page struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

func newPage(items interface{}, total int64, pageNo, perPage int) page {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return page{Items: items, Total: total, Page: pageNo, PerPage: perPage, TotalPages: pages}
}
