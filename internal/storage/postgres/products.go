package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/product"
)

const productColumns = `id, slug, name, description, category, price, compare_at_price, active, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// productWhere renders the filter as a WHERE clause with positional args.
func productWhere(f product.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !f.IncludeInactive {
		conds = append(conds, "active = TRUE")
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.Search != "" {
		add("name ILIKE ?", "%"+likeEscaper.Replace(f.Search)+"%")
	}
	if f.MinPrice > 0 {
		add("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= ?", f.MaxPrice)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func productOrder(s product.Sort) string {
	switch s {
	case product.SortPriceAsc:
		return " ORDER BY price ASC, id"
	case product.SortPriceDesc:
		return " ORDER BY price DESC, id"
	case product.SortName:
		return " ORDER BY name ASC, id"
	default:
		return " ORDER BY created_at DESC, id"
	}
}

// ListProducts lists products matching f with the total match count.
func (s *Store) ListProducts(ctx context.Context, f product.Filter) ([]product.Product, int64, error) {
	f = f.Normalize()
	where, args := productWhere(f)

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...); err != nil {
		return nil, 0, wrapErr("count products", err)
	}

	n := len(args)
	query := "SELECT " + productColumns + " FROM products" + where + productOrder(f.Sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	products := []product.Product{}
	if err := s.db.SelectContext(ctx, &products, query, append(args, f.PerPage, f.Offset())...); err != nil {
		return nil, 0, wrapErr("list products", err)
	}
	if err := s.attachChildren(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct fetches a product by UUID or slug.
func (s *Store) GetProduct(ctx context.Context, idOrSlug string) (*product.Product, error) {
	if idOrSlug == "" {
		return nil, fmt.Errorf("%w: product id cannot be empty", database.ErrInvalidInput)
	}
	column := "slug"
	if _, err := uuid.Parse(idOrSlug); err == nil {
		column = "id"
	}

	var p product.Product
	err := s.db.GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE "+column+" = $1", idOrSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewNotFoundError("product", idOrSlug)
	}
	if err != nil {
		return nil, wrapErr("get product", err)
	}

	one := []product.Product{p}
	if err := s.attachChildren(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// attachChildren loads variants and images for products in two queries.
func (s *Store) attachChildren(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Variants = []product.Variant{}
		products[i].Images = []product.Image{}
	}

	query, args, err := sqlx.In(`SELECT id, product_id, size, color, sku, stock
		FROM product_variants WHERE product_id IN (?) ORDER BY size, color`, ids)
	if err != nil {
		return fmt.Errorf("%w: build variant query: %v", database.ErrDatabaseError, err)
	}
	var variants []product.Variant
	if err := s.db.SelectContext(ctx, &variants, s.db.Rebind(query), args...); err != nil {
		return wrapErr("load variants", err)
	}
	for _, v := range variants {
		p := &products[index[v.ProductID]]
		p.Variants = append(p.Variants, v)
	}

	query, args, err = sqlx.In(`SELECT id, product_id, path, url, position, created_at
		FROM product_images WHERE product_id IN (?) ORDER BY position`, ids)
	if err != nil {
		return fmt.Errorf("%w: build image query: %v", database.ErrDatabaseError, err)
	}
	var images []product.Image
	if err := s.db.SelectContext(ctx, &images, s.db.Rebind(query), args...); err != nil {
		return wrapErr("load images", err)
	}
	for _, img := range images {
		p := &products[index[img.ProductID]]
		p.Images = append(p.Images, img)
	}
	return nil
}

// ListCategories returns the distinct categories of active products.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := s.db.SelectContext(ctx, &categories,
		`SELECT DISTINCT category FROM products WHERE active = TRUE AND category <> '' ORDER BY category`)
	if err != nil {
		return nil, wrapErr("list categories", err)
	}
	return categories, nil
}

// CreateProduct inserts a product and its initial variants in one transaction.
func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", database.ErrInvalidInput)
	}
	now := s.now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Variants {
		if p.Variants[i].ID == "" {
			p.Variants[i].ID = uuid.NewString()
		}
		p.Variants[i].ProductID = p.ID
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO products (`+productColumns+`)
			VALUES (:id, :slug, :name, :description, :category, :price, :compare_at_price, :active, :created_at, :updated_at)`, p)
		if err != nil {
			return wrapErr("create product", err)
		}
		if len(p.Variants) == 0 {
			return nil
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO product_variants (id, product_id, size, color, sku, stock)
			VALUES (:id, :product_id, :size, :color, :sku, :stock)`, p.Variants)
		if err != nil {
			return wrapErr("create variants", err)
		}
		return nil
	})
}

// UpdateProduct updates a product's scalar fields.
func (s *Store) UpdateProduct(ctx context.Context, p *product.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", database.ErrInvalidInput)
	}
	if err := database.ValidateID(p.ID); err != nil {
		return err
	}
	p.UpdatedAt = s.now().UTC()

	res, err := s.db.NamedExecContext(ctx, `UPDATE products
		SET slug = :slug, name = :name, description = :description, category = :category,
		    price = :price, compare_at_price = :compare_at_price, active = :active, updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return wrapErr("update product", err)
	}
	return expectOne(res, "product", p.ID)
}

// SetProductActive toggles a product's visibility.
func (s *Store) SetProductActive(ctx context.Context, id string, active bool) error {
	if err := database.ValidateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE products SET active = $2, updated_at = $3 WHERE id = $1`,
		id, active, s.now().UTC())
	if err != nil {
		return wrapErr("update product", err)
	}
	return expectOne(res, "product", id)
}

// DeleteProduct removes a product; variants and images cascade.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := database.ValidateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete product", err)
	}
	return expectOne(res, "product", id)
}

// UpsertVariant updates the variant with the same (product, size, color) or inserts a new one.
func (s *Store) UpsertVariant(ctx context.Context, v *product.Variant) error {
	if v == nil {
		return fmt.Errorf("%w: variant cannot be nil", database.ErrInvalidInput)
	}
	if err := database.ValidateID(v.ProductID); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	rows, err := s.db.NamedQueryContext(ctx, `INSERT INTO product_variants (id, product_id, size, color, sku, stock)
		VALUES (:id, :product_id, :size, :color, :sku, :stock)
		ON CONFLICT (product_id, size, color) DO UPDATE SET sku = EXCLUDED.sku, stock = EXCLUDED.stock
		RETURNING id`, v)
	if err != nil {
		return wrapErr("upsert variant", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&v.ID); err != nil {
			return wrapErr("upsert variant", err)
		}
	}
	if err := rows.Err(); err != nil {
		return wrapErr("upsert variant", err)
	}
	return nil
}

// DeleteVariant removes a variant of productID.
func (s *Store) DeleteVariant(ctx context.Context, productID, variantID string) error {
	if err := database.ValidateID(variantID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_variants WHERE id = $1 AND product_id = $2`, variantID, productID)
	if err != nil {
		return wrapErr("delete variant", err)
	}
	return expectOne(res, "variant", variantID)
}

// AdjustVariantStock adds delta to a variant's stock (floored at zero) and returns the new level.
func (s *Store) AdjustVariantStock(ctx context.Context, variantID string, delta int) (int, error) {
	if err := database.ValidateID(variantID); err != nil {
		return 0, err
	}
	var stock sql.NullInt64
	if err := s.db.GetContext(ctx, &stock, `SELECT adjust_variant_stock($1, $2)`, variantID, delta); err != nil {
		return 0, wrapErr("adjust stock", err)
	}
	if !stock.Valid {
		return 0, database.NewNotFoundError("variant", variantID)
	}
	return int(stock.Int64), nil
}

// ListLowStock lists variants at or below threshold.
func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]product.LowStock, error) {
	out := []product.LowStock{}
	err := s.db.SelectContext(ctx, &out, `SELECT v.id AS variant_id, v.product_id, p.name AS product_name,
			v.size, v.color, v.stock
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.stock <= $1
		ORDER BY v.stock ASC, p.name
		LIMIT 200`, threshold)
	if err != nil {
		return nil, wrapErr("list low stock", err)
	}
	return out, nil
}

// AddImage records an uploaded image.
func (s *Store) AddImage(ctx context.Context, img *product.Image) error {
	if img == nil {
		return fmt.Errorf("%w: image cannot be nil", database.ErrInvalidInput)
	}
	if err := database.ValidateID(img.ProductID); err != nil {
		return err
	}
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = s.now().UTC()
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO product_images (id, product_id, path, url, position, created_at)
		VALUES (:id, :product_id, :path, :url, :position, :created_at)`, img)
	if err != nil {
		return wrapErr("add image", err)
	}
	return nil
}

// GetImage fetches an image row.
func (s *Store) GetImage(ctx context.Context, id string) (*product.Image, error) {
	if err := database.ValidateID(id); err != nil {
		return nil, err
	}
	var img product.Image
	err := s.db.GetContext(ctx, &img, `SELECT id, product_id, path, url, position, created_at
		FROM product_images WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewNotFoundError("image", id)
	}
	if err != nil {
		return nil, wrapErr("get image", err)
	}
	return &img, nil
}

// DeleteImage removes an image row.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	if err := database.ValidateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete image", err)
	}
	return expectOne(res, "image", id)
}
