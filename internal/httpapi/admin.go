package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lakon-apparel/storefront/internal/admin"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/media"
)

// multipartOverhead leaves room for form boundaries around an image.
const multipartOverhead = 64 << 10

func (h *handler) adminRoutes(r *mux.Router) {
	r.HandleFunc("/dashboard", h.adminDashboard).Methods(http.MethodGet)

	r.HandleFunc("/products", h.adminListProducts).Methods(http.MethodGet)
	r.HandleFunc("/products", h.adminCreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{id}", h.adminGetProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", h.adminUpdateProduct).Methods(http.MethodPut)
	r.HandleFunc("/products/{id}", h.adminDeleteProduct).Methods(http.MethodDelete)
	r.HandleFunc("/products/{id}/variants", h.adminUpsertVariant).Methods(http.MethodPut)
	r.HandleFunc("/products/{id}/variants/{variantID}", h.adminDeleteVariant).Methods(http.MethodDelete)
	r.HandleFunc("/products/{id}/images", h.adminUploadImage).Methods(http.MethodPost)
	r.HandleFunc("/products/{id}/images/{imageID}", h.adminDeleteImage).Methods(http.MethodDelete)

	r.HandleFunc("/orders", h.adminListOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", h.adminGetOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/status", h.adminUpdateOrderStatus).Methods(http.MethodPatch)

	if h.svc.Feed != nil {
		r.Handle("/feed", h.svc.Feed).Methods(http.MethodGet)
	}
}

func (h *handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Admin.Dashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Admin.ListProducts(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) adminGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Admin.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in admin.ProductInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p, err := h.svc.Admin.CreateProduct(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in admin.ProductInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p, err := h.svc.Admin.UpdateProduct(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	hard := false
	if raw := r.URL.Query().Get("hard"); raw != "" {
		var err error
		if hard, err = strconv.ParseBool(raw); err != nil {
			httputil.WriteError(w, r, svcerrors.BadRequest("hard must be a boolean"))
			return
		}
	}
	if err := h.svc.Admin.DeleteProduct(r.Context(), mux.Vars(r)["id"], hard); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminUpsertVariant(w http.ResponseWriter, r *http.Request) {
	var in admin.VariantInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	v, err := h.svc.Admin.UpsertVariant(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *handler) adminDeleteVariant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.Admin.DeleteVariant(r.Context(), vars["id"], vars["variantID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxImageSize+multipartOverhead)
	file, _, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, svcerrors.Validation("image", media.ErrTooLarge.Error()))
			return
		}
		httputil.WriteError(w, r, svcerrors.BadRequest("multipart field \"image\" is required"))
		return
	}
	defer file.Close()

	data, truncated, err := httputil.ReadAllWithLimit(file, media.MaxImageSize)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.BadRequest("failed to read image"))
		return
	}
	if truncated {
		httputil.WriteError(w, r, svcerrors.Validation("image", media.ErrTooLarge.Error()))
		return
	}

	img, err := h.svc.Admin.UploadImage(r.Context(), mux.Vars(r)["id"], data)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, img)
}

func (h *handler) adminDeleteImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.Admin.DeleteImage(r.Context(), vars["id"], vars["imageID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	f := order.Filter{Status: order.Status(r.URL.Query().Get("status"))}
	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if f.PerPage, err = queryInt(r, "per_page"); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Admin.ListOrders(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Admin.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		*order.Order
		NextStatuses []order.Status `json:"next_statuses"`
	}{o, order.NextStatuses(o.Status)})
}

func (h *handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status order.Status `json:"status"`
	}
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	o, err := h.svc.Admin.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], in.Status)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}
