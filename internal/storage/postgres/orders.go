package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
)

const orderColumns = `id, number, user_id, status, customer_name, customer_phone, customer_email,
	address, city, postal_code, notes, subtotal, discount, shipping, total,
	payment_token, payment_url, paid_at, expires_at, created_at, updated_at`

const itemColumns = `id, order_id, product_id, variant_id, name, size, color, quantity, unit_price, line_total`

// orderRow is the flattened orders table row.
type orderRow struct {
	ID            string         `db:"id"`
	Number        string         `db:"number"`
	UserID        sql.NullString `db:"user_id"`
	Status        order.Status   `db:"status"`
	CustomerName  string         `db:"customer_name"`
	CustomerPhone string         `db:"customer_phone"`
	CustomerEmail string         `db:"customer_email"`
	Address       string         `db:"address"`
	City          string         `db:"city"`
	PostalCode    string         `db:"postal_code"`
	Notes         string         `db:"notes"`
	Subtotal      int64          `db:"subtotal"`
	Discount      int64          `db:"discount"`
	Shipping      int64          `db:"shipping"`
	Total         int64          `db:"total"`
	PaymentToken  string         `db:"payment_token"`
	PaymentURL    string         `db:"payment_url"`
	PaidAt        *time.Time     `db:"paid_at"`
	ExpiresAt     time.Time      `db:"expires_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toOrderRow(o *order.Order) orderRow {
	return orderRow{
		ID:            o.ID,
		Number:        o.Number,
		UserID:        sql.NullString{String: o.UserID, Valid: o.UserID != ""},
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
}

func (row orderRow) toOrder() order.Order {
	return order.Order{
		ID:     row.ID,
		Number: row.Number,
		UserID: row.UserID.String,
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
		Items:        []order.Item{},
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
}

// CreateOrder inserts an order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	if o == nil || len(o.Items) == 0 {
		return fmt.Errorf("%w: order must have items", database.ErrInvalidInput)
	}
	if o.UserID != "" {
		if err := database.ValidateUserID(o.UserID); err != nil {
			return err
		}
	}

	now := s.now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES (
			:id, :number, :user_id, :status, :customer_name, :customer_phone, :customer_email,
			:address, :city, :postal_code, :notes, :subtotal, :discount, :shipping, :total,
			:payment_token, :payment_url, :paid_at, :expires_at, :created_at, :updated_at)`, toOrderRow(o))
		if err != nil {
			return wrapErr("create order", err)
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO order_items (`+itemColumns+`) VALUES (
			:id, :order_id, :product_id, :variant_id, :name, :size, :color, :quantity, :unit_price, :line_total)`, o.Items)
		if err != nil {
			return wrapErr("create order items", err)
		}
		return nil
	})
}

// GetOrder fetches an order with its items.
func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	if err := database.ValidateID(id); err != nil {
		return nil, err
	}
	return s.getOrderBy(ctx, "id", id)
}

// GetOrderByNumber fetches an order by its public number.
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	if number == "" {
		return nil, fmt.Errorf("%w: order number cannot be empty", database.ErrInvalidInput)
	}
	return s.getOrderBy(ctx, "number", number)
}

func (s *Store) getOrderBy(ctx context.Context, column, value string) (*order.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT "+orderColumns+" FROM orders WHERE "+column+" = $1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewNotFoundError("order", value)
	}
	if err != nil {
		return nil, wrapErr("get order", err)
	}
	orders := []order.Order{row.toOrder()}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrders lists orders newest first with the total match count.
func (s *Store) ListOrders(ctx context.Context, f order.Filter) ([]order.Order, int64, error) {
	f = f.Normalize()
	if f.UserID != "" {
		if err := database.ValidateUserID(f.UserID); err != nil {
			return nil, 0, err
		}
	}

	where := " WHERE ($1 = '' OR status = $1) AND ($2 = '' OR user_id::text = $2)"
	args := []interface{}{string(f.Status), f.UserID}

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"+where, args...); err != nil {
		return nil, 0, wrapErr("count orders", err)
	}

	var rows []orderRow
	query := "SELECT " + orderColumns + " FROM orders" + where + " ORDER BY created_at DESC, id LIMIT $3 OFFSET $4"
	if err := s.db.SelectContext(ctx, &rows, query, append(args, f.PerPage, f.Offset())...); err != nil {
		return nil, 0, wrapErr("list orders", err)
	}
	orders, err := s.ordersFromRows(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionOrder performs a compare-and-set on the order status.
func (s *Store) TransitionOrder(ctx context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	if err := database.ValidateID(id); err != nil {
		return false, err
	}
	query := `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	if to == order.StatusPaid {
		query = `UPDATE orders SET status = $3, updated_at = $4, paid_at = $4 WHERE id = $1 AND status = $2`
	}
	res, err := s.db.ExecContext(ctx, query, id, string(from), string(to), at.UTC())
	if err != nil {
		return false, wrapErr("transition order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("transition order", err)
	}
	return n > 0, nil
}

// SetOrderPayment stores the gateway token and redirect URL.
func (s *Store) SetOrderPayment(ctx context.Context, id, token, redirectURL string) error {
	if err := database.ValidateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET payment_token = $2, payment_url = $3, updated_at = $4 WHERE id = $1`,
		id, token, redirectURL, s.now().UTC())
	if err != nil {
		return wrapErr("update order", err)
	}
	return expectOne(res, "order", id)
}

// ListPendingOrders lists orders awaiting payment created before the cutoff, oldest first.
func (s *Store) ListPendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, "SELECT "+orderColumns+` FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`, string(order.StatusPendingPayment), createdBefore.UTC(), limit)
	if err != nil {
		return nil, wrapErr("list pending orders", err)
	}
	return s.ordersFromRows(ctx, rows)
}

// OrderStats counts orders per status and sums paid revenue.
func (s *Store) OrderStats(ctx context.Context) (*order.Stats, error) {
	stats := &order.Stats{ByStatus: make(map[order.Status]int64, len(order.AllStatuses))}
	for _, status := range order.AllStatuses {
		stats.ByStatus[status] = 0
	}

	var counts []struct {
		Status order.Status `db:"status"`
		Count  int64        `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &counts, `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`); err != nil {
		return nil, wrapErr("count orders", err)
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
	}

	var paid []string
	for _, status := range order.AllStatuses {
		if status.Paid() {
			paid = append(paid, string(status))
		}
	}
	err := s.db.GetContext(ctx, &stats.Revenue,
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = ANY($1)`, pq.Array(paid))
	if err != nil {
		return nil, wrapErr("order revenue", err)
	}
	return stats, nil
}

func (s *Store) ordersFromRows(ctx context.Context, rows []orderRow) ([]order.Order, error) {
	orders := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toOrder())
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all orders in one query.
func (s *Store) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
	}

	query, args, err := sqlx.In("SELECT "+itemColumns+" FROM order_items WHERE order_id IN (?) ORDER BY name, size, color", ids)
	if err != nil {
		return fmt.Errorf("%w: build item query: %v", database.ErrDatabaseError, err)
	}
	var items []order.Item
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return wrapErr("load order items", err)
	}
	for _, it := range items {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return nil
}
