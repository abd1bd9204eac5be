// Package catalog serves the shopper-facing product catalog.
package catalog

import (
	"context"
	"strings"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/logging"
)

// Page is one page of a product listing.
type Page struct {
	Items      []product.Product `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// Config holds catalog service dependencies.
type Config struct {
	Products database.ProductStore
	Logger   *logging.Logger
}

// Service reads the catalog. Inactive products are invisible to shoppers.
type Service struct {
	products database.ProductStore
	log      *logging.Logger
}

// New creates a catalog service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{products: cfg.Products, log: log}
}

// List returns a page of active products.
func (s *Service) List(ctx context.Context, f product.Filter) (*Page, error) {
	f.IncludeInactive = false
	f = f.Normalize()
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return nil, svcerrors.Validation("min_price", "min_price must not exceed max_price")
	}

	items, total, err := s.products.ListProducts(ctx, f)
	if err != nil {
		return nil, s.storeError(ctx, "list products", err)
	}
	if items == nil {
		items = []product.Product{}
	}

	pages := 0
	if total > 0 {
		pages = int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	}
	return &Page{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage, TotalPages: pages}, nil
}

// Get returns an active product by ID or slug.
func (s *Service) Get(ctx context.Context, idOrSlug string) (*product.Product, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, svcerrors.BadRequest("product id or slug is required")
	}
	p, err := s.products.GetProduct(ctx, idOrSlug)
	if database.IsNotFound(err) {
		return nil, svcerrors.NotFound("product", idOrSlug)
	}
	if err != nil {
		return nil, s.storeError(ctx, "get product", err)
	}
	if !p.Active {
		return nil, svcerrors.NotFound("product", idOrSlug)
	}
	return p, nil
}

// GetVariant returns the (size, color) variant of an active product.
func (s *Service) GetVariant(ctx context.Context, productID, size, color string) (*product.Variant, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	v, ok := p.Variant(size, color)
	if !ok {
		return nil, svcerrors.NotFound("variant", productID+"/"+size+"/"+color)
	}
	return v, nil
}

// Categories lists categories that have at least one active product.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.products.ListCategories(ctx)
	if err != nil {
		return nil, s.storeError(ctx, "list categories", err)
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

func (s *Service) storeError(ctx context.Context, op string, err error) error {
	s.log.WithContext(ctx).WithError(err).WithField("op", op).Error("catalog query failed")
	if database.IsInvalidInput(err) {
		return svcerrors.BadRequest(err.Error())
	}
	return svcerrors.Internal("catalog unavailable", err)
}
