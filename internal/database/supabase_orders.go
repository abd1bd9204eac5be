package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lakon-apparel/storefront/infra/supabase"
	"github.com/lakon-apparel/storefront/internal/domain/order"
)

const orderSelect = "*,items:order_items(*)"

// orderRow is the flattened orders table row.
type orderRow struct {
	ID            string       `json:"id"`
	Number        string       `json:"number"`
	UserID        *string      `json:"user_id"`
	Status        order.Status `json:"status"`
	CustomerName  string       `json:"customer_name"`
	CustomerPhone string       `json:"customer_phone"`
	CustomerEmail string       `json:"customer_email"`
	Address       string       `json:"address"`
	City          string       `json:"city"`
	PostalCode    string       `json:"postal_code"`
	Notes         string       `json:"notes"`
	Subtotal      int64        `json:"subtotal"`
	Discount      int64        `json:"discount"`
	Shipping      int64        `json:"shipping"`
	Total         int64        `json:"total"`
	PaymentToken  string       `json:"payment_token"`
	PaymentURL    string       `json:"payment_url"`
	PaidAt        *time.Time   `json:"paid_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Items         []order.Item `json:"items,omitempty"`
}

func toOrderRow(o *order.Order) orderRow {
	row := orderRow{
		ID:            o.ID,
		Number:        o.Number,
		Status:        o.Status,
		CustomerName:  o.Customer.Name,
		CustomerPhone: o.Customer.Phone,
		CustomerEmail: o.Customer.Email,
		Address:       o.Customer.Address,
		City:          o.Customer.City,
		PostalCode:    o.Customer.PostalCode,
		Notes:         o.Customer.Notes,
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Shipping:      o.Shipping,
		Total:         o.Total,
		PaymentToken:  o.PaymentToken,
		PaymentURL:    o.PaymentURL,
		PaidAt:        o.PaidAt,
		ExpiresAt:     o.ExpiresAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.UserID != "" {
		uid := o.UserID
		row.UserID = &uid
	}
	return row
}

func (row orderRow) toOrder() order.Order {
	o := order.Order{
		ID:     row.ID,
		Number: row.Number,
		Status: row.Status,
		Customer: order.Customer{
			Name:       row.CustomerName,
			Phone:      row.CustomerPhone,
			Email:      row.CustomerEmail,
			Address:    row.Address,
			City:       row.City,
			PostalCode: row.PostalCode,
			Notes:      row.Notes,
		},
		Items:        row.Items,
		Subtotal:     row.Subtotal,
		Discount:     row.Discount,
		Shipping:     row.Shipping,
		Total:        row.Total,
		PaymentToken: row.PaymentToken,
		PaymentURL:   row.PaymentURL,
		PaidAt:       row.PaidAt,
		ExpiresAt:    row.ExpiresAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.UserID != nil {
		o.UserID = *row.UserID
	}
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	sort.SliceStable(o.Items, func(i, j int) bool { return o.Items[i].Name < o.Items[j].Name })
	return o
}

func decodeOrders(data []byte) ([]order.Order, error) {
	var rows []orderRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal orders: %v", ErrDatabaseError, err)
	}
	out := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toOrder())
	}
	return out, nil
}

// CreateOrder inserts an order followed by its items.
func (r *Repository) CreateOrder(ctx context.Context, o *order.Order) error {
	if o == nil || len(o.Items) == 0 {
		return fmt.Errorf("%w: order must have items", ErrInvalidInput)
	}
	if o.UserID != "" {
		if err := ValidateUserID(o.UserID); err != nil {
			return err
		}
	}

	now := r.now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt, o.UpdatedAt = now, now

	if _, err := r.from("orders").Insert(toOrderRow(o)).Execute(ctx); err != nil {
		return wrapErr("create order", err)
	}

	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
	}
	if _, err := r.from("order_items").Insert(o.Items).Execute(ctx); err != nil {
		_, _ = r.from("orders").Delete().Eq("id", o.ID).Execute(ctx)
		return wrapErr("create order items", err)
	}
	return nil
}

// GetOrder fetches an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return r.getOrderBy(ctx, "id", id)
}

// GetOrderByNumber fetches an order by its public number.
func (r *Repository) GetOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	number = SanitizeString(number)
	if number == "" {
		return nil, fmt.Errorf("%w: order number cannot be empty", ErrInvalidInput)
	}
	return r.getOrderBy(ctx, "number", number)
}

func (r *Repository) getOrderBy(ctx context.Context, column, value string) (*order.Order, error) {
	data, err := r.from("orders").Select(orderSelect).Eq(column, value).Limit(1).Execute(ctx)
	if err != nil {
		return nil, wrapErr("get order", err)
	}
	orders, err := decodeOrders(data)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, NewNotFoundError("order", value)
	}
	return &orders[0], nil
}

// ListOrders lists orders newest first with the total match count.
func (r *Repository) ListOrders(ctx context.Context, f order.Filter) ([]order.Order, int64, error) {
	f = f.Normalize()

	q := r.from("orders").Select(orderSelect)
	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	if f.UserID != "" {
		if err := ValidateUserID(f.UserID); err != nil {
			return nil, 0, err
		}
		q = q.Eq("user_id", f.UserID)
	}

	data, total, err := q.Order("created_at", supabase.OrderDesc).
		Limit(f.PerPage).
		Offset(f.Offset()).
		Count().
		ExecuteWithCount(ctx)
	if err != nil {
		return nil, 0, wrapErr("list orders", err)
	}
	orders, err := decodeOrders(data)
	if err != nil {
		return nil, 0, err
	}
	if total < 0 {
		total = int64(len(orders))
	}
	return orders, total, nil
}

// TransitionOrder performs a compare-and-set on the order status.
func (r *Repository) TransitionOrder(ctx context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}

	patch := map[string]interface{}{
		"status":     to,
		"updated_at": at.UTC(),
	}
	if to == order.StatusPaid {
		patch["paid_at"] = at.UTC()
	}

	data, err := r.from("orders").Update(patch).Eq("id", id).Eq("status", from).Select("id").Execute(ctx)
	if err != nil {
		return false, wrapErr("transition order", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("%w: unmarshal transition: %v", ErrDatabaseError, err)
	}
	return len(rows) > 0, nil
}

// SetOrderPayment stores the gateway token and redirect URL.
func (r *Repository) SetOrderPayment(ctx context.Context, id, token, redirectURL string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return r.patchOne(ctx, "orders", "order", id, map[string]interface{}{
		"payment_token": token,
		"payment_url":   redirectURL,
		"updated_at":    r.now().UTC(),
	})
}

// ListPendingOrders lists orders awaiting payment created before the cutoff, oldest first.
func (r *Repository) ListPendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	data, err := r.from("orders").
		Select(orderSelect).
		Eq("status", order.StatusPendingPayment).
		Lt("created_at", createdBefore.UTC().Format(time.RFC3339)).
		Order("created_at", supabase.OrderAsc).
		Limit(limit).
		Execute(ctx)
	if err != nil {
		return nil, wrapErr("list pending orders", err)
	}
	return decodeOrders(data)
}

// OrderStats counts orders per status and sums paid revenue.
func (r *Repository) OrderStats(ctx context.Context) (*order.Stats, error) {
	stats := &order.Stats{ByStatus: make(map[order.Status]int64, len(order.AllStatuses))}
	for _, status := range order.AllStatuses {
		_, count, err := r.from("orders").Select("id").Eq("status", status).Limit(0).Count().ExecuteWithCount(ctx)
		if err != nil {
			return nil, wrapErr("count orders", err)
		}
		if count < 0 {
			count = 0
		}
		stats.ByStatus[status] = count
	}

	data, err := r.db.RPC(ctx, "order_revenue", map[string]interface{}{})
	if err != nil {
		return nil, wrapErr("order revenue", err)
	}
	var revenue *int64
	if err := json.Unmarshal(data, &revenue); err != nil {
		return nil, fmt.Errorf("%w: unmarshal revenue: %v", ErrDatabaseError, err)
	}
	if revenue != nil {
		stats.Revenue = *revenue
	}
	return stats, nil
}
