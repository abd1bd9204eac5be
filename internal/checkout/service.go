// Package checkout turns carts into orders and drives the order lifecycle
// from payment notifications, reconciliation and admin actions.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lakon-apparel/storefront/internal/cart"
	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/logging"
	"github.com/lakon-apparel/storefront/internal/metrics"
	"github.com/lakon-apparel/storefront/internal/notify"
	"github.com/lakon-apparel/storefront/internal/payment"
)

const (
	DefaultPaymentWindow = 24 * time.Hour
	notifyTimeout        = 5 * time.Second
)

// StockAdjuster changes variant stock.
type StockAdjuster interface {
	AdjustVariantStock(ctx context.Context, variantID string, delta int) (int, error)
}

// Config holds checkout dependencies.
type Config struct {
	Orders        database.OrderStore
	Stock         StockAdjuster
	Carts         *cart.Service
	Gateway       payment.Gateway
	Notifier      notify.Notifier
	Composer      notify.Composer
	Events        order.Publisher
	PaymentWindow time.Duration
	FinishURL     string
	Logger        *logging.Logger
}

// Service creates orders and applies status transitions.
type Service struct {
	orders   database.OrderStore
	stock    StockAdjuster
	carts    *cart.Service
	gateway  payment.Gateway
	notifier notify.Notifier
	composer notify.Composer
	events   order.Publisher
	window   time.Duration
	finish   string
	log      *logging.Logger
	now      func() time.Time
}

// New creates a checkout service.
func New(cfg Config) (*Service, error) {
	if cfg.Orders == nil || cfg.Stock == nil || cfg.Carts == nil || cfg.Gateway == nil {
		return nil, errors.New("checkout: orders, stock, carts and gateway are required")
	}
	s := &Service{
		orders:   cfg.Orders,
		stock:    cfg.Stock,
		carts:    cfg.Carts,
		gateway:  cfg.Gateway,
		notifier: cfg.Notifier,
		composer: cfg.Composer,
		events:   cfg.Events,
		window:   cfg.PaymentWindow,
		finish:   cfg.FinishURL,
		log:      cfg.Logger,
		now:      time.Now,
	}
	if s.window <= 0 {
		s.window = DefaultPaymentWindow
	}
	if s.events == nil {
		s.events = order.NopPublisher{}
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLinkNotifier(s.log)
	}
	return s, nil
}

// Request is a checkout submission.
type Request struct {
	CartID   string         `json:"-"`
	UserID   string         `json:"-"`
	Customer order.Customer `json:"customer"`
}

// Result is returned to the shopper after a successful checkout.
type Result struct {
	Order       *order.Order `json:"order"`
	PaymentURL  string       `json:"payment_url"`
	WhatsAppURL string       `json:"whatsapp_url"`
}

// Checkout validates the cart against current stock, creates a
// pending_payment order with frozen totals, opens a payment page and clears
// the cart.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	customer, err := req.Customer.Normalize()
	if err != nil {
		var fe *order.FieldError
		if errors.As(err, &fe) {
			return nil, svcerrors.Validation(fe.Field, fe.Field+" "+fe.Message)
		}
		return nil, svcerrors.BadRequest(err.Error())
	}
	if req.CartID == "" {
		return nil, svcerrors.BadRequest("cart is empty")
	}

	var o *order.Order
	var tx *payment.Transaction
	err = s.carts.Checkout(ctx, req.CartID, func(c *cart.Cart, notices []cart.Notice) error {
		if len(notices) > 0 {
			metrics.RecordCheckout("cart_changed", 0)
			return svcerrors.OutOfStock("some items changed, please review your cart").WithDetails("notices", notices)
		}
		if c.Empty() {
			metrics.RecordCheckout("empty_cart", 0)
			return svcerrors.BadRequest("cart is empty")
		}

		o = s.buildOrder(c, customer, req)
		if err := s.createOrder(ctx, o); err != nil {
			metrics.RecordCheckout("store_error", 0)
			return err
		}

		var err error
		tx, err = s.gateway.CreateTransaction(ctx, s.transactionRequest(o))
		if err != nil {
			metrics.RecordCheckout("gateway_error", 0)
			s.log.WithContext(ctx).WithError(err).WithField("order", o.Number).Error("payment transaction failed")
			if _, terr := s.orders.TransitionOrder(ctx, o.ID, order.StatusPendingPayment, order.StatusFailed, s.now().UTC()); terr != nil {
				s.log.WithContext(ctx).WithError(terr).WithField("order", o.Number).Warn("failed to mark order failed")
			}
			return svcerrors.PaymentFailed(err)
		}

		o.PaymentToken, o.PaymentURL = tx.Token, tx.RedirectURL
		if err := s.orders.SetOrderPayment(ctx, o.ID, tx.Token, tx.RedirectURL); err != nil {
			// The shopper still gets the link; reconciliation settles the order.
			s.log.WithContext(ctx).WithError(err).WithField("order", o.Number).Error("failed to store payment token")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCheckout("created", o.Total)
	s.events.Publish(order.Event{Kind: order.EventCreated, Order: o, Source: "checkout", At: s.now().UTC()})
	s.send(ctx, o.Customer.Phone, s.composer.PaymentMessage(o))

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order": o.Number,
		"total": o.Total,
		"units": o.Units(),
	}).Info("order created")

	return &Result{Order: o, PaymentURL: tx.RedirectURL, WhatsAppURL: s.composer.OrderLink(o)}, nil
}

func (s *Service) buildOrder(c *cart.Cart, customer order.Customer, req Request) *order.Order {
	now := s.now().UTC()
	totals := c.Totals()
	o := &order.Order{
		ID:        uuid.NewString(),
		Number:    order.NewNumber(now),
		UserID:    req.UserID,
		CartID:    req.CartID,
		Status:    order.StatusPendingPayment,
		Customer:  customer,
		Subtotal:  totals.Subtotal,
		Discount:  totals.Discount,
		Shipping:  totals.Shipping,
		Total:     totals.Total,
		ExpiresAt: now.Add(s.window),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, line := range c.Items() {
		o.Items = append(o.Items, order.Item{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      line.Name,
			Size:      line.Size,
			Color:     line.Color,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal(),
		})
	}
	return o
}

// createOrder persists o, drawing a fresh number once if it collides.
func (s *Service) createOrder(ctx context.Context, o *order.Order) error {
	err := s.orders.CreateOrder(ctx, o)
	if database.IsConflict(err) {
		o.Number = order.NewNumber(o.CreatedAt)
		err = s.orders.CreateOrder(ctx, o)
	}
	if err != nil {
		return svcerrors.Internal("failed to create order", err)
	}
	return nil
}

func (s *Service) transactionRequest(o *order.Order) payment.TransactionRequest {
	items := make([]payment.Item, 0, len(o.Items)+2)
	for _, it := range o.Items {
		id := it.VariantID
		if id == "" {
			id = it.ProductID
		}
		items = append(items, payment.Item{
			ID:       id,
			Name:     truncate(fmt.Sprintf("%s %s/%s", it.Name, it.Size, it.Color), 50),
			Price:    it.UnitPrice,
			Quantity: it.Quantity,
		})
	}
	if o.Discount > 0 {
		items = append(items, payment.Item{ID: "discount", Name: "Diskon volume", Price: -o.Discount, Quantity: 1})
	}
	if o.Shipping > 0 {
		items = append(items, payment.Item{ID: "shipping", Name: "Ongkos kirim", Price: o.Shipping, Quantity: 1})
	}

	return payment.TransactionRequest{
		OrderID:     o.Number,
		GrossAmount: o.Total,
		Items:       items,
		Customer: payment.Customer{
			FirstName:  o.Customer.Name,
			Email:      o.Customer.Email,
			Phone:      o.Customer.Phone,
			Address:    o.Customer.Address,
			City:       o.Customer.City,
			PostalCode: o.Customer.PostalCode,
		},
		FinishURL:     s.finish,
		ExpiryMinutes: int(s.window / time.Minute),
	}
}

// send delivers a best-effort WhatsApp message.
func (s *Service) send(ctx context.Context, to, text string) {
	if to == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(ctx, to, text); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("whatsapp notification failed")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
