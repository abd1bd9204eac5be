package admin

import (
	"context"
	"strings"

	"github.com/lakon-apparel/storefront/internal/domain/order"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
)

// OrderPage is one page of orders.
type OrderPage struct {
	Items      []order.Order `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

// ListOrders lists orders newest first, optionally by status.
func (s *Service) ListOrders(ctx context.Context, f order.Filter) (*OrderPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, svcerrors.Validation("status", "unknown status "+string(f.Status))
	}
	f = f.Normalize()
	items, total, err := s.orders.ListOrders(ctx, f)
	if err != nil {
		return nil, s.storeError(ctx, "list orders", "order", "", err)
	}
	if items == nil {
		items = []order.Order{}
	}
	pages := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	return &OrderPage{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage, TotalPages: pages}, nil
}

// GetOrder returns an order by ID or order number.
func (s *Service) GetOrder(ctx context.Context, idOrNumber string) (*order.Order, error) {
	var (
		o   *order.Order
		err error
	)
	if strings.HasPrefix(idOrNumber, order.NumberPrefix) {
		o, err = s.orders.GetOrderByNumber(ctx, idOrNumber)
	} else {
		o, err = s.orders.GetOrder(ctx, idOrNumber)
	}
	if err != nil {
		return nil, s.storeError(ctx, "get order", "order", idOrNumber, err)
	}
	return o, nil
}

// UpdateOrderStatus moves an order along the status machine.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	return s.lifecycle.UpdateStatus(ctx, id, to)
}

// Dashboard is the admin landing summary.
type Dashboard struct {
	Orders            *order.Stats       `json:"orders"`
	LowStock          []product.LowStock `json:"low_stock"`
	LowStockThreshold int                `json:"low_stock_threshold"`
	Recent            []order.Order      `json:"recent_orders"`
}

// Dashboard returns order counts by status, revenue of paid orders, low
// stock variants and the latest orders.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.orders.OrderStats(ctx)
	if err != nil {
		return nil, s.storeError(ctx, "load order stats", "order", "", err)
	}
	low, err := s.products.ListLowStock(ctx, s.lowStock)
	if err != nil {
		return nil, s.storeError(ctx, "load low stock", "variant", "", err)
	}
	recent, _, err := s.orders.ListOrders(ctx, order.Filter{Page: 1, PerPage: 5})
	if err != nil {
		return nil, s.storeError(ctx, "list recent orders", "order", "", err)
	}
	if low == nil {
		low = []product.LowStock{}
	}
	if recent == nil {
		recent = []order.Order{}
	}
	return &Dashboard{Orders: stats, LowStock: low, LowStockThreshold: s.lowStock, Recent: recent}, nil
}
