package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/lakon-apparel/storefront/internal/catalog"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/media"
)

// VariantInput is a variant as submitted by the admin form.
type VariantInput struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	SKU   string `json:"sku"`
	Stock int    `json:"stock"`
}

func (in VariantInput) normalize() (VariantInput, error) {
	in.Size = strings.ToUpper(strings.TrimSpace(in.Size))
	in.Color = strings.TrimSpace(in.Color)
	in.SKU = strings.TrimSpace(in.SKU)
	switch {
	case in.Size == "":
		return in, svcerrors.Validation("size", "size is required")
	case in.Color == "":
		return in, svcerrors.Validation("color", "color is required")
	case in.Stock < 0:
		return in, svcerrors.Validation("stock", "stock must not be negative")
	}
	return in, nil
}

// ProductInput is a product as submitted by the admin form. Variants are
// only read on create; afterwards they are managed one by one.
type ProductInput struct {
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Price          int64          `json:"price"`
	CompareAtPrice int64          `json:"compare_at_price"`
	Active         *bool          `json:"active"`
	Variants       []VariantInput `json:"variants"`
}

func (in ProductInput) apply(p *product.Product) error {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.Category = strings.ToLower(strings.TrimSpace(in.Category))
	p.Price = in.Price
	p.CompareAtPrice = in.CompareAtPrice
	if in.Active != nil {
		p.Active = *in.Active
	}

	// An existing product keeps its public URL unless a new slug is given.
	slug := strings.TrimSpace(in.Slug)
	switch {
	case slug != "":
		p.Slug = product.Slugify(slug)
	case p.Slug == "":
		p.Slug = product.Slugify(p.Name)
	}

	switch {
	case p.Name == "":
		return svcerrors.Validation("name", "name is required")
	case len(p.Name) > 200:
		return svcerrors.Validation("name", "name is too long")
	case p.Slug == "":
		return svcerrors.Validation("slug", "slug must contain letters or digits")
	case p.Price <= 0:
		return svcerrors.Validation("price", "price must be positive")
	case p.CompareAtPrice < 0:
		return svcerrors.Validation("compare_at_price", "compare-at price must not be negative")
	case p.CompareAtPrice > 0 && p.CompareAtPrice <= p.Price:
		return svcerrors.Validation("compare_at_price", "compare-at price must exceed price")
	}
	return nil
}

// ListProducts lists products including inactive ones.
func (s *Service) ListProducts(ctx context.Context, f product.Filter) (*catalog.Page, error) {
	f.IncludeInactive = true
	f = f.Normalize()
	items, total, err := s.products.ListProducts(ctx, f)
	if err != nil {
		return nil, s.storeError(ctx, "list products", "product", "", err)
	}
	if items == nil {
		items = []product.Product{}
	}
	pages := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	return &catalog.Page{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage, TotalPages: pages}, nil
}

// GetProduct returns a product regardless of its active flag.
func (s *Service) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "get product", "product", id, err)
	}
	return p, nil
}

// CreateProduct creates a product with its initial variants. New products
// are active unless the input says otherwise.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*product.Product, error) {
	p := &product.Product{Active: true}
	if err := in.apply(p); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(in.Variants))
	for _, raw := range in.Variants {
		v, err := raw.normalize()
		if err != nil {
			return nil, err
		}
		key := v.Size + "/" + strings.ToLower(v.Color)
		if _, dup := seen[key]; dup {
			return nil, svcerrors.Validation("variants", fmt.Sprintf("duplicate variant %s/%s", v.Size, v.Color))
		}
		seen[key] = struct{}{}
		p.Variants = append(p.Variants, product.Variant{Size: v.Size, Color: v.Color, SKU: v.SKU, Stock: v.Stock})
	}

	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, s.storeError(ctx, "create product", "product", p.Slug, err)
	}
	s.log.WithContext(ctx).WithField("product", p.ID).WithField("slug", p.Slug).Info("product created")
	return p, nil
}

// UpdateProduct replaces a product's editable fields.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*product.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return nil, s.storeError(ctx, "update product", "product", id, err)
	}
	return p, nil
}

// DeleteProduct deactivates a product, or removes it and its images when hard is set.
func (s *Service) DeleteProduct(ctx context.Context, id string, hard bool) error {
	if !hard {
		if err := s.products.SetProductActive(ctx, id, false); err != nil {
			return s.storeError(ctx, "deactivate product", "product", id, err)
		}
		return nil
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return s.storeError(ctx, "delete product", "product", id, err)
	}
	for _, img := range p.Images {
		s.deleteObject(ctx, img.Path)
	}
	s.log.WithContext(ctx).WithField("product", id).Info("product deleted")
	return nil
}

// UpsertVariant creates or updates the (size, color) variant of a product.
func (s *Service) UpsertVariant(ctx context.Context, productID string, in VariantInput) (*product.Variant, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	// Keep the stored spelling of an existing color.
	if existing, ok := p.Variant(in.Size, in.Color); ok {
		in.Color = existing.Color
	}

	v := &product.Variant{ProductID: p.ID, Size: in.Size, Color: in.Color, SKU: in.SKU, Stock: in.Stock}
	if err := s.products.UpsertVariant(ctx, v); err != nil {
		return nil, s.storeError(ctx, "save variant", "product", productID, err)
	}
	return v, nil
}

// DeleteVariant removes a variant.
func (s *Service) DeleteVariant(ctx context.Context, productID, variantID string) error {
	if err := s.products.DeleteVariant(ctx, productID, variantID); err != nil {
		return s.storeError(ctx, "delete variant", "variant", variantID, err)
	}
	return nil
}

// UploadImage stores an image and attaches it to the product after the
// existing ones.
func (s *Service) UploadImage(ctx context.Context, productID string, data []byte) (*product.Image, error) {
	contentType, err := media.DetectImage(data)
	if err != nil {
		return nil, svcerrors.Validation("image", err.Error())
	}
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	key := media.ImageKey(p.ID, contentType)
	url, err := s.media.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, svcerrors.Unavailable("image storage unavailable", err)
	}

	position := 0
	for _, img := range p.Images {
		if img.Position >= position {
			position = img.Position + 1
		}
	}
	img := &product.Image{ProductID: p.ID, Path: key, URL: url, Position: position}
	if err := s.products.AddImage(ctx, img); err != nil {
		s.deleteObject(ctx, key)
		return nil, s.storeError(ctx, "add image", "product", productID, err)
	}
	return img, nil
}

// DeleteImage detaches an image and removes the stored object.
func (s *Service) DeleteImage(ctx context.Context, productID, imageID string) error {
	img, err := s.products.GetImage(ctx, imageID)
	if err != nil {
		return s.storeError(ctx, "get image", "image", imageID, err)
	}
	if img.ProductID != productID {
		return svcerrors.NotFound("image", imageID)
	}
	if err := s.products.DeleteImage(ctx, imageID); err != nil {
		return s.storeError(ctx, "delete image", "image", imageID, err)
	}
	s.deleteObject(ctx, img.Path)
	return nil
}

// deleteObject removes a stored object; orphans are only logged.
func (s *Service) deleteObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("failed to delete image object")
	}
}
