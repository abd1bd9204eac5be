package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lakon-apparel/storefront/internal/httputil"
)

const (
	snapSandboxURL    = "https://app.sandbox.midtrans.com/snap/v1"
	snapProductionURL = "https://app.midtrans.com/snap/v1"
	coreSandboxURL    = "https://api.sandbox.midtrans.com/v2"
	coreProductionURL = "https://api.midtrans.com/v2"
)

// MidtransConfig configures the Midtrans client.
type MidtransConfig struct {
	ServerKey  string
	Production bool
	// SnapURL and CoreURL override the endpoints; tests point both at httptest.
	SnapURL    string
	CoreURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Midtrans talks to the Snap (payment page) and Core (status) APIs.
type Midtrans struct {
	serverKey string
	snap      *httputil.Client
	core      *httputil.Client
}

var _ Gateway = (*Midtrans)(nil)

// NewMidtrans creates a Midtrans gateway client.
func NewMidtrans(cfg MidtransConfig) (*Midtrans, error) {
	if cfg.ServerKey == "" {
		return nil, errors.New("midtrans: server key is required")
	}
	snapURL, coreURL := snapSandboxURL, coreSandboxURL
	if cfg.Production {
		snapURL, coreURL = snapProductionURL, coreProductionURL
	}
	if cfg.SnapURL != "" {
		snapURL = cfg.SnapURL
	}
	if cfg.CoreURL != "" {
		coreURL = cfg.CoreURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.ServerKey+":"))
	decorate := func(r *http.Request) { r.Header.Set("Authorization", auth) }

	return &Midtrans{
		serverKey: cfg.ServerKey,
		// A retried Snap POST could open a second payment page for one order.
		snap: httputil.NewClient(httputil.ClientConfig{
			BaseURL: snapURL, Timeout: timeout, NoRetry: true, Decorate: decorate, HTTPClient: cfg.HTTPClient,
		}),
		core: httputil.NewClient(httputil.ClientConfig{
			BaseURL: coreURL, Timeout: timeout, Decorate: decorate, HTTPClient: cfg.HTTPClient,
		}),
	}, nil
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []Item `json:"item_details,omitempty"`
	CustomerDetails struct {
		FirstName       string   `json:"first_name"`
		Email           string   `json:"email,omitempty"`
		Phone           string   `json:"phone"`
		ShippingAddress Customer `json:"shipping_address"`
	} `json:"customer_details"`
	Callbacks *snapCallbacks `json:"callbacks,omitempty"`
	Expiry    *snapExpiry    `json:"expiry,omitempty"`
}

type snapCallbacks struct {
	Finish string `json:"finish"`
}

type snapExpiry struct {
	Unit     string `json:"unit"`
	Duration int    `json:"duration"`
}

// CreateTransaction opens a Snap payment page.
func (m *Midtrans) CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error) {
	if req.OrderID == "" || req.GrossAmount <= 0 {
		return nil, errors.New("midtrans: order id and positive gross amount are required")
	}

	var body snapRequest
	body.TransactionDetails.OrderID = req.OrderID
	body.TransactionDetails.GrossAmount = req.GrossAmount
	body.ItemDetails = req.Items
	body.CustomerDetails.FirstName = req.Customer.FirstName
	body.CustomerDetails.Email = req.Customer.Email
	body.CustomerDetails.Phone = req.Customer.Phone
	body.CustomerDetails.ShippingAddress = req.Customer
	if req.FinishURL != "" {
		body.Callbacks = &snapCallbacks{Finish: req.FinishURL}
	}
	if req.ExpiryMinutes > 0 {
		body.Expiry = &snapExpiry{Unit: "minutes", Duration: req.ExpiryMinutes}
	}

	resp, err := m.snap.Post(ctx, "/transactions", body)
	if err != nil {
		return nil, fmt.Errorf("midtrans: create transaction: %w", err)
	}
	data, err := httputil.ReadResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("midtrans: create transaction: %w", err)
	}

	res := gjson.ParseBytes(data)
	tx := &Transaction{
		Token:       res.Get("token").String(),
		RedirectURL: res.Get("redirect_url").String(),
	}
	if tx.Token == "" || tx.RedirectURL == "" {
		return nil, fmt.Errorf("midtrans: create transaction: %s", res.Get("error_messages").String())
	}
	return tx, nil
}

// Status fetches the current transaction status for an order.
func (m *Midtrans) Status(ctx context.Context, orderID string) (*Notification, error) {
	resp, err := m.core.Get(ctx, "/"+url.PathEscape(orderID)+"/status")
	if err != nil {
		return nil, fmt.Errorf("midtrans: status %s: %w", orderID, err)
	}
	data, err := httputil.ReadResponse(resp)
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("midtrans: status %s: %w", orderID, err)
	}

	// The Core API reports "not found" in the body with HTTP 200.
	if gjson.GetBytes(data, "status_code").String() == "404" {
		return nil, ErrTransactionNotFound
	}
	n, err := ParseNotification(data)
	if err != nil {
		return nil, fmt.Errorf("midtrans: status %s: %w", orderID, err)
	}
	return n, nil
}

// VerifyNotification checks a webhook body's signature key.
func (m *Midtrans) VerifyNotification(body []byte) (*Notification, error) {
	return verifySignature(body, m.serverKey)
}

// CircuitState reports the Snap client's breaker state for health checks.
func (m *Midtrans) CircuitState() httputil.CircuitState {
	return m.snap.CircuitState()
}
