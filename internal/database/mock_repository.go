package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lakon-apparel/storefront/internal/domain/order"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	"github.com/lakon-apparel/storefront/internal/domain/profile"
)

// MockRepository is an in-memory implementation of RepositoryInterface used
// by tests and by the memory backend.
type MockRepository struct {
	mu sync.RWMutex

	products map[string]*product.Product
	images   map[string]*product.Image
	orders   map[string]*order.Order
	profiles map[string]*profile.Profile

	// Error injection for testing error paths
	ErrorOnNextCall error

	now func() time.Time
}

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		products: make(map[string]*product.Product),
		images:   make(map[string]*product.Image),
		orders:   make(map[string]*order.Order),
		profiles: make(map[string]*profile.Profile),
		now:      time.Now,
	}
}

var _ RepositoryInterface = (*MockRepository)(nil)

// checkError returns and clears any injected error.
func (m *MockRepository) checkError() error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	return nil
}

// Reset clears all data in the mock repository.
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = make(map[string]*product.Product)
	m.images = make(map[string]*product.Image)
	m.orders = make(map[string]*order.Order)
	m.profiles = make(map[string]*profile.Profile)
	m.ErrorOnNextCall = nil
}

// SetNow overrides the clock.
func (m *MockRepository) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MockRepository) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkError()
}

func cloneProduct(p *product.Product) product.Product {
	out := *p
	out.Variants = append([]product.Variant{}, p.Variants...)
	out.Images = append([]product.Image{}, p.Images...)
	sortProductChildren(&out)
	return out
}

// ---- products ----

func (m *MockRepository) ListProducts(ctx context.Context, f product.Filter) ([]product.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, 0, err
	}

	f = f.Normalize()
	term := strings.ToLower(SanitizeString(f.Search))

	var matched []product.Product
	for _, p := range m.products {
		switch {
		case !f.IncludeInactive && !p.Active:
			continue
		case f.Category != "" && p.Category != f.Category:
			continue
		case term != "" && !strings.Contains(strings.ToLower(p.Name), term):
			continue
		case f.MinPrice > 0 && p.Price < f.MinPrice:
			continue
		case f.MaxPrice > 0 && p.Price > f.MaxPrice:
			continue
		}
		matched = append(matched, cloneProduct(p))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case product.SortPriceAsc:
			return a.Price < b.Price
		case product.SortPriceDesc:
			return a.Price > b.Price
		case product.SortName:
			return a.Name < b.Name
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	total := int64(len(matched))
	start := f.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MockRepository) findProduct(idOrSlug string) *product.Product {
	if p, ok := m.products[idOrSlug]; ok {
		return p
	}
	for _, p := range m.products {
		if p.Slug == idOrSlug {
			return p
		}
	}
	return nil
}

func (m *MockRepository) GetProduct(ctx context.Context, idOrSlug string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	p := m.findProduct(idOrSlug)
	if p == nil {
		return nil, NewNotFoundError("product", idOrSlug)
	}
	out := cloneProduct(p)
	return &out, nil
}

func (m *MockRepository) ListCategories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range m.products {
		if !p.Active || p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; !ok {
			seen[p.Category] = struct{}{}
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockRepository) CreateProduct(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", ErrInvalidInput)
	}
	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return fmt.Errorf("%w: slug %q already exists", ErrConflict, p.Slug)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := m.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Variants {
		if p.Variants[i].ID == "" {
			p.Variants[i].ID = uuid.NewString()
		}
		p.Variants[i].ProductID = p.ID
	}
	stored := cloneProduct(p)
	stored.Images = nil
	m.products[p.ID] = &stored
	return nil
}

func (m *MockRepository) UpdateProduct(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	existing, ok := m.products[p.ID]
	if !ok {
		return NewNotFoundError("product", p.ID)
	}
	for id, other := range m.products {
		if id != p.ID && other.Slug == p.Slug {
			return fmt.Errorf("%w: slug %q already exists", ErrConflict, p.Slug)
		}
	}
	p.UpdatedAt = m.now().UTC()
	existing.Slug = p.Slug
	existing.Name = p.Name
	existing.Description = p.Description
	existing.Category = p.Category
	existing.Price = p.Price
	existing.CompareAtPrice = p.CompareAtPrice
	existing.Active = p.Active
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (m *MockRepository) SetProductActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	p, ok := m.products[id]
	if !ok {
		return NewNotFoundError("product", id)
	}
	p.Active = active
	p.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MockRepository) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if _, ok := m.products[id]; !ok {
		return NewNotFoundError("product", id)
	}
	delete(m.products, id)
	for imgID, img := range m.images {
		if img.ProductID == id {
			delete(m.images, imgID)
		}
	}
	return nil
}

func (m *MockRepository) UpsertVariant(ctx context.Context, v *product.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	p, ok := m.products[v.ProductID]
	if !ok {
		return NewNotFoundError("product", v.ProductID)
	}
	for i := range p.Variants {
		if p.Variants[i].Size == v.Size && p.Variants[i].Color == v.Color {
			v.ID = p.Variants[i].ID
			p.Variants[i].SKU = v.SKU
			p.Variants[i].Stock = v.Stock
			return nil
		}
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	p.Variants = append(p.Variants, *v)
	return nil
}

func (m *MockRepository) DeleteVariant(ctx context.Context, productID, variantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	p, ok := m.products[productID]
	if !ok {
		return NewNotFoundError("variant", variantID)
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			p.Variants = append(p.Variants[:i], p.Variants[i+1:]...)
			return nil
		}
	}
	return NewNotFoundError("variant", variantID)
}

func (m *MockRepository) AdjustVariantStock(ctx context.Context, variantID string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return 0, err
	}
	for _, p := range m.products {
		for i := range p.Variants {
			if p.Variants[i].ID == variantID {
				stock := p.Variants[i].Stock + delta
				if stock < 0 {
					stock = 0
				}
				p.Variants[i].Stock = stock
				return stock, nil
			}
		}
	}
	return 0, NewNotFoundError("variant", variantID)
}

func (m *MockRepository) ListLowStock(ctx context.Context, threshold int) ([]product.LowStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []product.LowStock{}
	for _, p := range m.products {
		for _, v := range p.Variants {
			if v.Stock <= threshold {
				out = append(out, product.LowStock{
					VariantID:   v.ID,
					ProductID:   p.ID,
					ProductName: p.Name,
					Size:        v.Size,
					Color:       v.Color,
					Stock:       v.Stock,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].VariantID < out[j].VariantID
	})
	return out, nil
}

func (m *MockRepository) AddImage(ctx context.Context, img *product.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	p, ok := m.products[img.ProductID]
	if !ok {
		return NewNotFoundError("product", img.ProductID)
	}
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = m.now().UTC()
	stored := *img
	m.images[img.ID] = &stored
	p.Images = append(p.Images, stored)
	return nil
}

func (m *MockRepository) GetImage(ctx context.Context, id string) (*product.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	img, ok := m.images[id]
	if !ok {
		return nil, NewNotFoundError("image", id)
	}
	out := *img
	return &out, nil
}

func (m *MockRepository) DeleteImage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	img, ok := m.images[id]
	if !ok {
		return NewNotFoundError("image", id)
	}
	delete(m.images, id)
	if p, ok := m.products[img.ProductID]; ok {
		for i := range p.Images {
			if p.Images[i].ID == id {
				p.Images = append(p.Images[:i], p.Images[i+1:]...)
				break
			}
		}
	}
	return nil
}

// ---- orders ----

func cloneOrder(o *order.Order) order.Order {
	out := *o
	out.Items = append([]order.Item{}, o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		out.PaidAt = &t
	}
	return out
}

func (m *MockRepository) CreateOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if o == nil || len(o.Items) == 0 {
		return fmt.Errorf("%w: order must have items", ErrInvalidInput)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for _, existing := range m.orders {
		if existing.Number == o.Number {
			return fmt.Errorf("%w: order number %q already exists", ErrConflict, o.Number)
		}
	}
	now := m.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
	}
	stored := cloneOrder(o)
	m.orders[o.ID] = &stored
	return nil
}

func (m *MockRepository) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, NewNotFoundError("order", id)
	}
	out := cloneOrder(o)
	return &out, nil
}

func (m *MockRepository) GetOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	for _, o := range m.orders {
		if o.Number == number {
			out := cloneOrder(o)
			return &out, nil
		}
	}
	return nil, NewNotFoundError("order", number)
}

func (m *MockRepository) ListOrders(ctx context.Context, f order.Filter) ([]order.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, 0, err
	}
	f = f.Normalize()

	var matched []order.Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MockRepository) TransitionOrder(ctx context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return false, err
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at.UTC()
	if to == order.StatusPaid {
		paidAt := at.UTC()
		o.PaidAt = &paidAt
	}
	return true, nil
}

func (m *MockRepository) SetOrderPayment(ctx context.Context, id, token, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	o, ok := m.orders[id]
	if !ok {
		return NewNotFoundError("order", id)
	}
	o.PaymentToken = token
	o.PaymentURL = redirectURL
	o.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MockRepository) ListPendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var out []order.Order
	for _, o := range m.orders {
		if o.Status == order.StatusPendingPayment && o.CreatedAt.Before(createdBefore) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) OrderStats(ctx context.Context) (*order.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	stats := &order.Stats{ByStatus: make(map[order.Status]int64, len(order.AllStatuses))}
	for _, s := range order.AllStatuses {
		stats.ByStatus[s] = 0
	}
	for _, o := range m.orders {
		stats.ByStatus[o.Status]++
		if o.Status.Paid() {
			stats.Revenue += o.Total
		}
	}
	return stats, nil
}

// ---- profiles ----

func (m *MockRepository) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, NewNotFoundError("profile", userID)
	}
	out := *p
	return &out, nil
}

func (m *MockRepository) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	now := m.now().UTC()
	if existing, ok := m.profiles[p.ID]; ok {
		existing.FullName = p.FullName
		existing.Phone = p.Phone
		existing.UpdatedAt = now
		p.IsAdmin = existing.IsAdmin
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = now
		return nil
	}
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	stored.IsAdmin = false
	p.IsAdmin = false
	m.profiles[p.ID] = &stored
	return nil
}

// SetAdmin flips the admin flag; there is no API for this outside the database.
func (m *MockRepository) SetAdmin(userID string, admin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		now := m.now().UTC()
		p = &profile.Profile{ID: userID, CreatedAt: now, UpdatedAt: now}
		m.profiles[userID] = p
	}
	p.IsAdmin = admin
}
