package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lakon-apparel/storefront/internal/domain/product"
	"github.com/lakon-apparel/storefront/internal/httputil"
)

// productFilter reads catalog query parameters.
func productFilter(r *http.Request) (product.Filter, error) {
	q := r.URL.Query()
	f := product.Filter{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Sort:     product.Sort(q.Get("sort")),
	}
	var err error
	if f.MinPrice, err = queryInt64(r, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryInt64(r, "max_price"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	if f.PerPage, err = queryInt(r, "per_page"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Catalog.List(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Catalog.Get(r.Context(), mux.Vars(r)["idOrSlug"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": cats})
}
