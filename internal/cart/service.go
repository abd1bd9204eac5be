package cart

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/logging"
)

const lockStripes = 64

// ProductLookup resolves catalog entries by ID or slug.
type ProductLookup interface {
	GetProduct(ctx context.Context, idOrSlug string) (*product.Product, error)
}

// AddItemRequest is a shopper's add-to-cart action. Price and stock come
// from the catalog, never from the client.
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// LineView is a line with its computed total.
type LineView struct {
	LineItem
	LineTotal int64 `json:"line_total"`
}

// Notice tells the shopper a line was adjusted by a catalog refresh.
type Notice struct {
	Key     ItemKey `json:"key"`
	Message string  `json:"message"`
}

// View is the cart as returned to clients.
type View struct {
	ID      string     `json:"id"`
	Items   []LineView `json:"items"`
	Totals  Totals     `json:"totals"`
	Rules   Rules      `json:"rules"`
	Notices []Notice   `json:"notices,omitempty"`
}

// Service loads, mutates and saves carts.
type Service struct {
	repo     Repository
	products ProductLookup
	rules    Rules
	log      *logging.Logger

	locks [lockStripes]sync.Mutex
}

// NewService creates a cart service.
func NewService(repo Repository, products ProductLookup, rules Rules, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{repo: repo, products: products, rules: rules, log: log}
}

// Rules returns the pricing rules.
func (s *Service) Rules() Rules { return s.rules }

func (s *Service) lock(id string) func() {
	mu := &s.locks[stripe(id)]
	mu.Lock()
	return mu.Unlock
}

func (s *Service) load(ctx context.Context, id string) (*Cart, error) {
	snap, err := s.repo.Load(ctx, id)
	if errors.Is(err, ErrCartNotFound) {
		return New(id, s.rules), nil
	}
	if err != nil {
		return nil, svcerrors.Unavailable("cart storage unavailable", err)
	}
	return Restore(snap, s.rules), nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	if c.Empty() {
		if err := s.repo.Delete(ctx, c.ID()); err != nil {
			return svcerrors.Unavailable("cart storage unavailable", err)
		}
		return nil
	}
	if err := s.repo.Save(ctx, c.Snapshot()); err != nil {
		return svcerrors.Unavailable("cart storage unavailable", err)
	}
	return nil
}

// NewView renders c for clients.
func NewView(c *Cart, notices []Notice) *View {
	items := c.Items()
	lines := make([]LineView, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineView{LineItem: it, LineTotal: it.LineTotal()})
	}
	return &View{ID: c.ID(), Items: lines, Totals: c.Totals(), Rules: c.Rules(), Notices: notices}
}

// Get returns the cart after refreshing stock and prices from the catalog.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	defer s.lock(id)()

	c, notices, err := s.loadRefreshed(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewView(c, notices), nil
}

// Prepare returns the refreshed cart aggregate for checkout.
func (s *Service) Prepare(ctx context.Context, id string) (*Cart, []Notice, error) {
	defer s.lock(id)()
	return s.loadRefreshed(ctx, id)
}

// Checkout runs fn on the refreshed cart while holding the cart's lock and
// deletes the cart once fn succeeds. Concurrent checkouts of the same cart
// run one after the other, so the later one finds the cart empty.
func (s *Service) Checkout(ctx context.Context, id string, fn func(c *Cart, notices []Notice) error) error {
	defer s.lock(id)()

	c, notices, err := s.loadRefreshed(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(c, notices); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("cart_id", id).Warn("failed to clear cart after checkout")
	}
	return nil
}

func (s *Service) loadRefreshed(ctx context.Context, id string) (*Cart, []Notice, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.Empty() {
		return c, nil, nil
	}

	notices, err := s.refresh(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if len(notices) > 0 {
		if err := s.save(ctx, c); err != nil {
			return nil, nil, err
		}
	}
	return c, notices, nil
}

// refresh re-reads stock ceilings and prices for every line. Every change
// the shopper has not seen yet produces a notice.
func (s *Service) refresh(ctx context.Context, c *Cart) ([]Notice, error) {
	var notices []Notice
	cache := make(map[string]*product.Product)

	for _, line := range c.Items() {
		p, ok := cache[line.ProductID]
		if !ok {
			var err error
			p, err = s.products.GetProduct(ctx, line.ProductID)
			if err != nil && !database.IsNotFound(err) {
				return nil, svcerrors.Internal("failed to load product", err)
			}
			cache[line.ProductID] = p
		}

		key := line.Key()
		if p == nil || !p.Active {
			_ = c.Remove(key)
			notices = append(notices, Notice{Key: key, Message: fmt.Sprintf("%s is no longer available", line.Name)})
			continue
		}
		v, ok := p.Variant(line.Size, line.Color)
		if !ok {
			_ = c.Remove(key)
			notices = append(notices, Notice{Key: key, Message: fmt.Sprintf("%s %s/%s is no longer available", line.Name, line.Size, line.Color)})
			continue
		}

		changed, _ := c.SetStock(key, v.Stock, p.Price)
		if v.Stock <= 0 {
			notices = append(notices, Notice{Key: key, Message: fmt.Sprintf("%s %s/%s is sold out", line.Name, line.Size, line.Color)})
			continue
		}
		if changed {
			notices = append(notices, Notice{Key: key, Message: fmt.Sprintf("%s %s/%s reduced to %d (stock)", line.Name, line.Size, line.Color, v.Stock)})
		}
		if line.UnitPrice != p.Price {
			notices = append(notices, Notice{Key: key, Message: fmt.Sprintf("%s price changed from %d to %d", line.Name, line.UnitPrice, p.Price)})
		}
	}
	return notices, nil
}

// AddItem adds a variant to the cart.
func (s *Service) AddItem(ctx context.Context, id string, req AddItemRequest) (*View, error) {
	if req.Quantity <= 0 {
		return nil, svcerrors.Validation("quantity", "quantity must be at least 1")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, svcerrors.Validation("product_id", "product_id is required")
	}

	p, err := s.products.GetProduct(ctx, req.ProductID)
	if database.IsNotFound(err) || (err == nil && !p.Active) {
		return nil, svcerrors.NotFound("product", req.ProductID)
	}
	if err != nil {
		return nil, svcerrors.Internal("failed to load product", err)
	}
	v, ok := p.Variant(req.Size, req.Color)
	if !ok {
		return nil, svcerrors.Validation("size", "size and color combination is not available")
	}

	defer s.lock(id)()
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	err = c.Add(LineItem{
		ProductID: p.ID,
		VariantID: v.ID,
		Name:      p.Name,
		ImageURL:  p.PrimaryImageURL(),
		Size:      v.Size,
		Color:     v.Color,
		Quantity:  req.Quantity,
		UnitPrice: p.Price,
		Stock:     v.Stock,
	})
	if err != nil {
		return nil, mapCartError(err)
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	var notices []Notice
	if line, ok := c.Find(ItemKey{ProductID: p.ID, Size: v.Size, Color: v.Color}); ok && line.Quantity == line.Stock {
		notices = append(notices, Notice{Key: line.Key(), Message: fmt.Sprintf("only %d left in stock", line.Stock)})
	}
	s.log.WithContext(ctx).WithField("cart_id", id).WithField("product_id", p.ID).Debug("cart item added")
	return NewView(c, notices), nil
}

// UpdateItem sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateItem(ctx context.Context, id string, key ItemKey, qty int) (*View, error) {
	defer s.lock(id)()
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.UpdateQuantity(key, qty); err != nil {
		return nil, mapCartError(err)
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return NewView(c, nil), nil
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, id string, key ItemKey) (*View, error) {
	defer s.lock(id)()
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Remove(key); err != nil {
		return nil, mapCartError(err)
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return NewView(c, nil), nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, id string) error {
	defer s.lock(id)()
	if err := s.repo.Delete(ctx, id); err != nil {
		return svcerrors.Unavailable("cart storage unavailable", err)
	}
	return nil
}

// Merge moves a guest cart's lines into the signed-in shopper's cart.
func (s *Service) Merge(ctx context.Context, fromID, toID string) (*View, error) {
	if fromID == "" || fromID == toID {
		return s.Get(ctx, toID)
	}

	// Lock in a stable order so concurrent merges cannot deadlock.
	first, second := fromID, toID
	if stripe(first) > stripe(second) {
		first, second = second, first
	}
	unlockFirst := s.lock(first)
	defer unlockFirst()
	if stripe(first) != stripe(second) {
		defer s.lock(second)()
	}

	from, err := s.load(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.load(ctx, toID)
	if err != nil {
		return nil, err
	}
	for _, item := range from.Items() {
		// Lines that no longer fit are dropped; the refresh on next view reports them.
		_ = to.Add(item)
	}
	if err := s.save(ctx, to); err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, fromID); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("failed to delete merged guest cart")
	}
	return NewView(to, nil), nil
}

func stripe(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % lockStripes
}

func mapCartError(err error) error {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return svcerrors.OutOfStock("this size and color is sold out")
	case errors.Is(err, ErrItemNotInCart):
		return svcerrors.New(svcerrors.CodeNotFound, "item not in cart", http.StatusNotFound)
	case errors.Is(err, ErrInvalidQuantity):
		return svcerrors.Validation("quantity", "quantity must be at least 1")
	case errors.Is(err, ErrInvalidItem):
		return svcerrors.BadRequest("invalid cart item")
	default:
		return svcerrors.Internal("cart update failed", err)
	}
}
