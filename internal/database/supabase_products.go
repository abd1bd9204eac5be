package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lakon-apparel/storefront/infra/supabase"
	"github.com/lakon-apparel/storefront/internal/domain/product"
)

const productSelect = "*,variants:product_variants(*),images:product_images(*)"

type productRow struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Price          int64     `json:"price"`
	CompareAtPrice int64     `json:"compare_at_price"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toProductRow(p *product.Product) productRow {
	return productRow{
		ID:             p.ID,
		Slug:           p.Slug,
		Name:           p.Name,
		Description:    p.Description,
		Category:       p.Category,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func sortProductChildren(p *product.Product) {
	sort.SliceStable(p.Images, func(i, j int) bool { return p.Images[i].Position < p.Images[j].Position })
	sort.SliceStable(p.Variants, func(i, j int) bool {
		if p.Variants[i].Size != p.Variants[j].Size {
			return p.Variants[i].Size < p.Variants[j].Size
		}
		return p.Variants[i].Color < p.Variants[j].Color
	})
	if p.Images == nil {
		p.Images = []product.Image{}
	}
	if p.Variants == nil {
		p.Variants = []product.Variant{}
	}
}

// ListProducts lists products matching f with the total match count.
func (r *Repository) ListProducts(ctx context.Context, f product.Filter) ([]product.Product, int64, error) {
	f = f.Normalize()

	q := r.from("products").Select(productSelect)
	if !f.IncludeInactive {
		q = q.Eq("active", true)
	}
	if f.Category != "" {
		q = q.Eq("category", SanitizeString(f.Category))
	}
	if term := SanitizeString(f.Search); term != "" {
		q = q.ILike("name", "*"+term+"*")
	}
	if f.MinPrice > 0 {
		q = q.Gte("price", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		q = q.Lte("price", f.MaxPrice)
	}

	switch f.Sort {
	case product.SortPriceAsc:
		q = q.Order("price", supabase.OrderAsc)
	case product.SortPriceDesc:
		q = q.Order("price", supabase.OrderDesc)
	case product.SortName:
		q = q.Order("name", supabase.OrderAsc)
	default:
		q = q.Order("created_at", supabase.OrderDesc)
	}

	data, total, err := q.Limit(f.PerPage).Offset(f.Offset()).Count().ExecuteWithCount(ctx)
	if err != nil {
		return nil, 0, wrapErr("list products", err)
	}

	var products []product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, 0, fmt.Errorf("%w: unmarshal products: %v", ErrDatabaseError, err)
	}
	for i := range products {
		sortProductChildren(&products[i])
	}
	if total < 0 {
		total = int64(len(products))
	}
	return products, total, nil
}

// GetProduct fetches a product by UUID or slug.
func (r *Repository) GetProduct(ctx context.Context, idOrSlug string) (*product.Product, error) {
	if idOrSlug == "" {
		return nil, fmt.Errorf("%w: product id cannot be empty", ErrInvalidInput)
	}

	q := r.from("products").Select(productSelect)
	if _, err := uuid.Parse(idOrSlug); err == nil {
		q = q.Eq("id", idOrSlug)
	} else {
		q = q.Eq("slug", SanitizeString(idOrSlug))
	}

	var products []product.Product
	if err := q.Limit(1).ExecuteInto(ctx, &products); err != nil {
		return nil, wrapErr("get product", err)
	}
	if len(products) == 0 {
		return nil, NewNotFoundError("product", idOrSlug)
	}
	sortProductChildren(&products[0])
	return &products[0], nil
}

// ListCategories returns the distinct categories of active products.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	var rows []struct {
		Category string `json:"category"`
	}
	if err := r.from("products").Select("category").Eq("active", true).ExecuteInto(ctx, &rows); err != nil {
		return nil, wrapErr("list categories", err)
	}

	seen := make(map[string]struct{}, len(rows))
	categories := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Category == "" {
			continue
		}
		if _, ok := seen[row.Category]; ok {
			continue
		}
		seen[row.Category] = struct{}{}
		categories = append(categories, row.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// CreateProduct inserts a product and its initial variants.
func (r *Repository) CreateProduct(ctx context.Context, p *product.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", ErrInvalidInput)
	}
	now := r.now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.from("products").Insert(toProductRow(p)).Execute(ctx); err != nil {
		return wrapErr("create product", err)
	}

	if len(p.Variants) > 0 {
		for i := range p.Variants {
			if p.Variants[i].ID == "" {
				p.Variants[i].ID = uuid.NewString()
			}
			p.Variants[i].ProductID = p.ID
		}
		if _, err := r.from("product_variants").Insert(p.Variants).Execute(ctx); err != nil {
			// No cross-request transaction in PostgREST; undo the parent row.
			_, _ = r.from("products").Delete().Eq("id", p.ID).Execute(ctx)
			return wrapErr("create variants", err)
		}
	}
	return nil
}

// UpdateProduct updates a product's scalar fields.
func (r *Repository) UpdateProduct(ctx context.Context, p *product.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", ErrInvalidInput)
	}
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	p.UpdatedAt = r.now().UTC()

	patch := map[string]interface{}{
		"slug":             p.Slug,
		"name":             p.Name,
		"description":      p.Description,
		"category":         p.Category,
		"price":            p.Price,
		"compare_at_price": p.CompareAtPrice,
		"active":           p.Active,
		"updated_at":       p.UpdatedAt,
	}
	return r.patchOne(ctx, "products", "product", p.ID, patch)
}

// SetProductActive toggles a product's visibility.
func (r *Repository) SetProductActive(ctx context.Context, id string, active bool) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return r.patchOne(ctx, "products", "product", id, map[string]interface{}{
		"active":     active,
		"updated_at": r.now().UTC(),
	})
}

// DeleteProduct removes a product; variants and images cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return r.deleteOne(ctx, "product", r.from("products").Delete().Eq("id", id), id)
}

// UpsertVariant updates the variant with the same (product, size, color) or inserts a new one.
func (r *Repository) UpsertVariant(ctx context.Context, v *product.Variant) error {
	if v == nil {
		return fmt.Errorf("%w: variant cannot be nil", ErrInvalidInput)
	}
	if err := ValidateID(v.ProductID); err != nil {
		return err
	}

	var existing []product.Variant
	err := r.from("product_variants").
		Eq("product_id", v.ProductID).
		Eq("size", v.Size).
		Eq("color", v.Color).
		Limit(1).
		ExecuteInto(ctx, &existing)
	if err != nil {
		return wrapErr("find variant", err)
	}

	if len(existing) > 0 {
		v.ID = existing[0].ID
		return r.patchOne(ctx, "product_variants", "variant", v.ID, map[string]interface{}{
			"sku":   v.SKU,
			"stock": v.Stock,
		})
	}

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if _, err := r.from("product_variants").Insert(v).Execute(ctx); err != nil {
		return wrapErr("create variant", err)
	}
	return nil
}

// DeleteVariant removes a variant of productID.
func (r *Repository) DeleteVariant(ctx context.Context, productID, variantID string) error {
	if err := ValidateID(variantID); err != nil {
		return err
	}
	q := r.from("product_variants").Delete().Eq("id", variantID).Eq("product_id", productID)
	return r.deleteOne(ctx, "variant", q, variantID)
}

// AdjustVariantStock adds delta to a variant's stock (floored at zero) and returns the new level.
func (r *Repository) AdjustVariantStock(ctx context.Context, variantID string, delta int) (int, error) {
	if err := ValidateID(variantID); err != nil {
		return 0, err
	}
	data, err := r.db.RPC(ctx, "adjust_variant_stock", map[string]interface{}{
		"p_variant_id": variantID,
		"p_delta":      delta,
	})
	if err != nil {
		return 0, wrapErr("adjust stock", err)
	}

	var stock *int
	if err := json.Unmarshal(data, &stock); err != nil {
		return 0, fmt.Errorf("%w: unmarshal stock: %v", ErrDatabaseError, err)
	}
	if stock == nil {
		return 0, NewNotFoundError("variant", variantID)
	}
	return *stock, nil
}

// ListLowStock lists variants at or below threshold.
func (r *Repository) ListLowStock(ctx context.Context, threshold int) ([]product.LowStock, error) {
	var rows []struct {
		ID        string `json:"id"`
		ProductID string `json:"product_id"`
		Size      string `json:"size"`
		Color     string `json:"color"`
		Stock     int    `json:"stock"`
		Product   struct {
			Name string `json:"name"`
		} `json:"products"`
	}
	err := r.from("product_variants").
		Select("id,product_id,size,color,stock,products(name)").
		Lte("stock", threshold).
		Order("stock", supabase.OrderAsc).
		Limit(200).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, wrapErr("list low stock", err)
	}

	out := make([]product.LowStock, 0, len(rows))
	for _, row := range rows {
		out = append(out, product.LowStock{
			VariantID:   row.ID,
			ProductID:   row.ProductID,
			ProductName: row.Product.Name,
			Size:        row.Size,
			Color:       row.Color,
			Stock:       row.Stock,
		})
	}
	return out, nil
}

// AddImage records an uploaded image.
func (r *Repository) AddImage(ctx context.Context, img *product.Image) error {
	if img == nil {
		return fmt.Errorf("%w: image cannot be nil", ErrInvalidInput)
	}
	if err := ValidateID(img.ProductID); err != nil {
		return err
	}
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = r.now().UTC()
	if _, err := r.from("product_images").Insert(img).Execute(ctx); err != nil {
		return wrapErr("add image", err)
	}
	return nil
}

// GetImage fetches an image row.
func (r *Repository) GetImage(ctx context.Context, id string) (*product.Image, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var images []product.Image
	if err := r.from("product_images").Eq("id", id).Limit(1).ExecuteInto(ctx, &images); err != nil {
		return nil, wrapErr("get image", err)
	}
	if len(images) == 0 {
		return nil, NewNotFoundError("image", id)
	}
	return &images[0], nil
}

// DeleteImage removes an image row.
func (r *Repository) DeleteImage(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return r.deleteOne(ctx, "image", r.from("product_images").Delete().Eq("id", id), id)
}

func (r *Repository) patchOne(ctx context.Context, table, resource, id string, patch map[string]interface{}) error {
	data, err := r.from(table).Update(patch).Eq("id", id).Execute(ctx)
	if err != nil {
		return wrapErr("update "+resource, err)
	}
	return expectRows(data, resource, id)
}

func (r *Repository) deleteOne(ctx context.Context, resource string, q *supabase.QueryBuilder, id string) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return wrapErr("delete "+resource, err)
	}
	return expectRows(data, resource, id)
}

// expectRows returns a not found error when a representation is empty.
func expectRows(data []byte, resource, id string) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: unmarshal %s: %v", ErrDatabaseError, resource, err)
	}
	if len(rows) == 0 {
		return NewNotFoundError(resource, id)
	}
	return nil
}
