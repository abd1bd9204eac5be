// Package order holds the order model, status machine and customer details.
package order

import (
	"time"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusFailed         Status = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPendingPayment,
	StatusPaid,
	StatusProcessing,
	StatusShipped,
	StatusCompleted,
	StatusCancelled,
	StatusExpired,
	StatusFailed,
}

var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusPaid, StatusCancelled, StatusExpired, StatusFailed},
	StatusPaid:           {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusCompleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Paid reports whether payment has been captured for an order in this status.
func (s Status) Paid() bool {
	switch s {
	case StatusPaid, StatusProcessing, StatusShipped, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// Order is a placed order with frozen totals.
type Order struct {
	ID           string     `json:"id"`
	Number       string     `json:"number"`
	UserID       string     `json:"user_id,omitempty"`
	CartID       string     `json:"-"`
	Status       Status     `json:"status"`
	Customer     Customer   `json:"customer"`
	Items        []Item     `json:"items"`
	Subtotal     int64      `json:"subtotal"`
	Discount     int64      `json:"discount"`
	Shipping     int64      `json:"shipping"`
	Total        int64      `json:"total"`
	PaymentToken string     `json:"payment_token,omitempty"`
	PaymentURL   string     `json:"payment_url,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Item is a frozen order line.
type Item struct {
	ID        string `json:"id" db:"id"`
	OrderID   string `json:"order_id" db:"order_id"`
	ProductID string `json:"product_id" db:"product_id"`
	VariantID string `json:"variant_id" db:"variant_id"`
	Name      string `json:"name" db:"name"`
	Size      string `json:"size" db:"size"`
	Color     string `json:"color" db:"color"`
	Quantity  int    `json:"quantity" db:"quantity"`
	UnitPrice int64  `json:"unit_price" db:"unit_price"`
	LineTotal int64  `json:"line_total" db:"line_total"`
}

// Units sums item quantities.
func (o *Order) Units() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Filter selects orders for listings.
type Filter struct {
	Status  Status
	UserID  string
	Page    int
	PerPage int
}

// Normalize clamps paging.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
	return f
}

// Offset is the zero-based index of the first row on the page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Stats summarizes orders for the admin dashboard.
type Stats struct {
	ByStatus map[Status]int64 `json:"by_status"`
	Revenue  int64            `json:"revenue"`
}
