// Package cart implements the shopping cart aggregate: line items keyed by
// (product, size, color), stock-clamped quantities and derived totals.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock      = errors.New("variant is out of stock")
	ErrItemNotInCart   = errors.New("item not in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidItem     = errors.New("invalid line item")
)

// Rules are the pricing rules applied to every cart.
type Rules struct {
	VolumeDiscountPercent  int   `json:"volume_discount_percent"`
	VolumeDiscountMinUnits int   `json:"volume_discount_min_units"`
	ShippingFee            int64 `json:"shipping_fee"`
	FreeShippingThreshold  int64 `json:"free_shipping_threshold"`
}

// DefaultRules returns 10% off at six units, flat 20.000 shipping waived from 500.000.
func DefaultRules() Rules {
	return Rules{
		VolumeDiscountPercent:  10,
		VolumeDiscountMinUnits: 6,
		ShippingFee:            20000,
		FreeShippingThreshold:  500000,
	}
}

// Validate rejects nonsensical rule sets.
func (r Rules) Validate() error {
	switch {
	case r.VolumeDiscountPercent < 0 || r.VolumeDiscountPercent > 100:
		return fmt.Errorf("volume discount percent %d out of range", r.VolumeDiscountPercent)
	case r.VolumeDiscountMinUnits < 1:
		return fmt.Errorf("volume discount min units must be positive")
	case r.ShippingFee < 0 || r.FreeShippingThreshold < 0:
		return fmt.Errorf("shipping amounts must not be negative")
	}
	return nil
}

// ItemKey identifies a line.
type ItemKey struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (k ItemKey) normalized() ItemKey {
	return ItemKey{
		ProductID: strings.TrimSpace(k.ProductID),
		Size:      strings.ToUpper(strings.TrimSpace(k.Size)),
		Color:     strings.ToLower(strings.TrimSpace(k.Color)),
	}
}

// LineItem is one product variant in the cart. UnitPrice is in rupiah.
type LineItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int    `json:"stock"`
}

// Key returns the line's identity.
func (li LineItem) Key() ItemKey {
	return ItemKey{ProductID: li.ProductID, Size: li.Size, Color: li.Color}
}

// LineTotal is quantity times unit price.
func (li LineItem) LineTotal() int64 {
	return int64(li.Quantity) * li.UnitPrice
}

// Totals are derived from the lines and the rules; never set directly.
type Totals struct {
	Units    int   `json:"units"`
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// Cart is the aggregate. It is not safe for concurrent use; the service
// serializes access per cart ID.
type Cart struct {
	id        string
	rules     Rules
	items     []LineItem
	totals    Totals
	updatedAt time.Time
	now       func() time.Time
}

// New creates an empty cart.
func New(id string, rules Rules) *Cart {
	c := &Cart{id: id, rules: rules, now: time.Now}
	c.recalculate()
	return c
}

func (c *Cart) ID() string { return c.id }

func (c *Cart) Rules() Rules { return c.rules }

func (c *Cart) UpdatedAt() time.Time { return c.updatedAt }

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []LineItem {
	return append([]LineItem(nil), c.items...)
}

// Totals returns the derived totals.
func (c *Cart) Totals() Totals { return c.totals }

// Len is the number of lines.
func (c *Cart) Len() int { return len(c.items) }

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.items) == 0 }

func (c *Cart) indexOf(key ItemKey) int {
	key = key.normalized()
	for i := range c.items {
		if c.items[i].Key().normalized() == key {
			return i
		}
	}
	return -1
}

// Find returns the line with key.
func (c *Cart) Find(key ItemKey) (LineItem, bool) {
	if i := c.indexOf(key); i >= 0 {
		return c.items[i], true
	}
	return LineItem{}, false
}

// Add merges item into an existing line with the same key or appends it.
// The resulting quantity is clamped to item.Stock.
func (c *Cart) Add(item LineItem) error {
	if item.ProductID == "" || item.UnitPrice < 0 {
		return ErrInvalidItem
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if item.Stock <= 0 {
		return ErrOutOfStock
	}

	if i := c.indexOf(item.Key()); i >= 0 {
		line := &c.items[i]
		line.Quantity += item.Quantity
		// Newer catalog data wins.
		line.Stock = item.Stock
		line.UnitPrice = item.UnitPrice
		if item.Name != "" {
			line.Name = item.Name
		}
		if item.ImageURL != "" {
			line.ImageURL = item.ImageURL
		}
		if item.VariantID != "" {
			line.VariantID = item.VariantID
		}
		line.Quantity = clamp(line.Quantity, line.Stock)
	} else {
		item.Quantity = clamp(item.Quantity, item.Stock)
		c.items = append(c.items, item)
	}

	c.touch()
	return nil
}

// Remove drops the line with key.
func (c *Cart) Remove(key ItemKey) error {
	i := c.indexOf(key)
	if i < 0 {
		return ErrItemNotInCart
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.touch()
	return nil
}

// UpdateQuantity sets the line's quantity clamped to its stock; qty <= 0 removes it.
func (c *Cart) UpdateQuantity(key ItemKey, qty int) error {
	i := c.indexOf(key)
	if i < 0 {
		return ErrItemNotInCart
	}
	if qty <= 0 {
		return c.Remove(key)
	}
	c.items[i].Quantity = clamp(qty, c.items[i].Stock)
	c.touch()
	return nil
}

// SetStock refreshes the stock ceiling (and price) of a line and re-clamps it.
// A line whose stock dropped to zero is removed. It reports whether the
// quantity changed.
func (c *Cart) SetStock(key ItemKey, stock int, unitPrice int64) (bool, error) {
	i := c.indexOf(key)
	if i < 0 {
		return false, ErrItemNotInCart
	}
	if stock <= 0 {
		return true, c.Remove(key)
	}

	line := &c.items[i]
	before := line.Quantity
	line.Stock = stock
	if unitPrice >= 0 {
		line.UnitPrice = unitPrice
	}
	line.Quantity = clamp(line.Quantity, stock)
	c.touch()
	return line.Quantity != before, nil
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.items = nil
	c.touch()
}

func (c *Cart) touch() {
	c.updatedAt = c.now().UTC()
	c.recalculate()
}

// recalculate derives all totals from the lines. Every mutation ends here.
func (c *Cart) recalculate() {
	c.totals = ComputeTotals(c.items, c.rules)
}

// ComputeTotals derives totals for lines under rules.
func ComputeTotals(items []LineItem, rules Rules) Totals {
	var t Totals
	for _, it := range items {
		t.Units += it.Quantity
		t.Subtotal += it.LineTotal()
	}

	if rules.VolumeDiscountPercent > 0 && t.Units >= rules.VolumeDiscountMinUnits {
		t.Discount = decimal.NewFromInt(t.Subtotal).
			Mul(decimal.NewFromInt(int64(rules.VolumeDiscountPercent))).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	}

	if len(items) > 0 && t.Subtotal < rules.FreeShippingThreshold {
		t.Shipping = rules.ShippingFee
	}

	t.Total = t.Subtotal - t.Discount + t.Shipping
	return t
}

func clamp(qty, stock int) int {
	if qty > stock {
		return stock
	}
	return qty
}
