// Package payment integrates the hosted payment page (Snap-style) gateway.
package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/lakon-apparel/storefront/internal/domain/order"
)

var (
	ErrInvalidSignature    = errors.New("invalid notification signature")
	ErrMalformed           = errors.New("malformed notification")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Item is a line sent to the gateway. The sum of Price*Quantity must equal
// the gross amount, so discounts and shipping travel as their own items.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Customer is the payer shown on the payment page.
type Customer struct {
	FirstName  string `json:"first_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// TransactionRequest opens a payment page for an order.
type TransactionRequest struct {
	OrderID       string
	GrossAmount   int64
	Items         []Item
	Customer      Customer
	FinishURL     string
	ExpiryMinutes int
}

// Transaction is the gateway's answer to CreateTransaction.
type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is the gateway's status vocabulary.
type TransactionStatus string

const (
	TxCapture       TransactionStatus = "capture"
	TxSettlement    TransactionStatus = "settlement"
	TxPending       TransactionStatus = "pending"
	TxDeny          TransactionStatus = "deny"
	TxCancel        TransactionStatus = "cancel"
	TxExpire        TransactionStatus = "expire"
	TxFailure       TransactionStatus = "failure"
	TxRefund        TransactionStatus = "refund"
	TxPartialRefund TransactionStatus = "partial_refund"
)

// Fraud screening outcomes reported alongside a capture.
const (
	FraudAccept    = "accept"
	FraudChallenge = "challenge"
	FraudDeny      = "deny"
)

// Notification is a payment status report, pushed by webhook or pulled by Status.
type Notification struct {
	OrderID           string            `json:"order_id"`
	TransactionID     string            `json:"transaction_id"`
	TransactionStatus TransactionStatus `json:"transaction_status"`
	FraudStatus       string            `json:"fraud_status,omitempty"`
	StatusCode        string            `json:"status_code"`
	GrossAmount       string            `json:"gross_amount"`
	PaymentType       string            `json:"payment_type,omitempty"`
	SignatureKey      string            `json:"signature_key,omitempty"`
}

// OrderStatus maps the gateway status onto the order lifecycle. A partial
// refund leaves the order as it is, so it maps to pending and is skipped.
func (n *Notification) OrderStatus() order.Status {
	switch n.TransactionStatus {
	case TxCapture:
		// Card captures are only final once fraud screening accepts them.
		switch n.FraudStatus {
		case FraudAccept, "":
			return order.StatusPaid
		case FraudDeny:
			return order.StatusFailed
		default:
			return order.StatusPendingPayment
		}
	case TxSettlement:
		return order.StatusPaid
	case TxDeny, TxFailure:
		return order.StatusFailed
	case TxCancel, TxRefund:
		return order.StatusCancelled
	case TxExpire:
		return order.StatusExpired
	default:
		return order.StatusPendingPayment
	}
}

// Amount parses the gross amount ("150000.00") into whole rupiah.
func (n *Notification) Amount() (int64, error) {
	d, err := decimal.NewFromString(n.GrossAmount)
	if err != nil || !d.IsInteger() || d.IsNegative() {
		return 0, fmt.Errorf("%w: gross_amount %q", ErrMalformed, n.GrossAmount)
	}
	return d.IntPart(), nil
}

// FormatAmount renders whole rupiah the way the gateway echoes it back.
func FormatAmount(rupiah int64) string {
	return decimal.NewFromInt(rupiah).StringFixed(2)
}

// Gateway is a payment provider.
type Gateway interface {
	CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error)
	Status(ctx context.Context, orderID string) (*Notification, error)
	VerifyNotification(body []byte) (*Notification, error)
}

// Signature computes SHA-512(order_id + status_code + gross_amount + server_key) in hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// ParseNotification reads a notification body without verifying it.
func ParseNotification(body []byte) (*Notification, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	res := gjson.ParseBytes(body)
	n := &Notification{
		OrderID:           res.Get("order_id").String(),
		TransactionID:     res.Get("transaction_id").String(),
		TransactionStatus: TransactionStatus(res.Get("transaction_status").String()),
		FraudStatus:       res.Get("fraud_status").String(),
		StatusCode:        res.Get("status_code").String(),
		GrossAmount:       res.Get("gross_amount").String(),
		PaymentType:       res.Get("payment_type").String(),
		SignatureKey:      res.Get("signature_key").String(),
	}
	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" || n.TransactionStatus == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrMalformed)
	}
	return n, nil
}

// verifySignature parses body and checks its signature against serverKey.
func verifySignature(body []byte, serverKey string) (*Notification, error) {
	n, err := ParseNotification(body)
	if err != nil {
		return nil, err
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(n.SignatureKey)), []byte(want)) != 1 {
		return nil, ErrInvalidSignature
	}
	return n, nil
}
