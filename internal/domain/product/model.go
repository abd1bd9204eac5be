// Package product holds the catalog model shared by the repositories and services.
package product

import (
	"strings"
	"time"
	"unicode"
)

// Product is a catalog entry. Prices are whole rupiah.
type Product struct {
	ID             string    `json:"id" db:"id"`
	Slug           string    `json:"slug" db:"slug"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Category       string    `json:"category" db:"category"`
	Price          int64     `json:"price" db:"price"`
	CompareAtPrice int64     `json:"compare_at_price,omitempty" db:"compare_at_price"`
	Active         bool      `json:"active" db:"active"`
	Images         []Image   `json:"images" db:"-"`
	Variants       []Variant `json:"variants" db:"-"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Variant is a (size, color) combination with its own stock count.
type Variant struct {
	ID        string `json:"id" db:"id"`
	ProductID string `json:"product_id" db:"product_id"`
	Size      string `json:"size" db:"size"`
	Color     string `json:"color" db:"color"`
	SKU       string `json:"sku,omitempty" db:"sku"`
	Stock     int    `json:"stock" db:"stock"`
}

// Image is an uploaded product photo.
type Image struct {
	ID        string    `json:"id" db:"id"`
	ProductID string    `json:"product_id" db:"product_id"`
	Path      string    `json:"path" db:"path"`
	URL       string    `json:"url" db:"url"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LowStock is a variant at or below the low-stock threshold.
type LowStock struct {
	VariantID   string `json:"variant_id" db:"variant_id"`
	ProductID   string `json:"product_id" db:"product_id"`
	ProductName string `json:"product_name" db:"product_name"`
	Size        string `json:"size" db:"size"`
	Color       string `json:"color" db:"color"`
	Stock       int    `json:"stock" db:"stock"`
}

// Variant returns the variant matching size and color, case-insensitively.
func (p *Product) Variant(size, color string) (*Variant, bool) {
	for i := range p.Variants {
		v := &p.Variants[i]
		if strings.EqualFold(v.Size, size) && strings.EqualFold(v.Color, color) {
			return v, true
		}
	}
	return nil, false
}

// TotalStock sums stock across variants.
func (p *Product) TotalStock() int {
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// PrimaryImageURL returns the first image by position, or "".
func (p *Product) PrimaryImageURL() string {
	best := -1
	for i, img := range p.Images {
		if best < 0 || img.Position < p.Images[best].Position {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return p.Images[best].URL
}

// Slugify builds a URL slug from a product name.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
