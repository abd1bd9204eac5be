package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fake is an in-process gateway for development and tests. Payments are
// settled by calling SetStatus and delivering the result of Notify.
type Fake struct {
	mu        sync.Mutex
	serverKey string
	baseURL   string
	txs       map[string]*fakeTx

	// FailCreate makes the next CreateTransaction fail.
	FailCreate error
}

type fakeTx struct {
	req    TransactionRequest
	token  string
	status TransactionStatus
}

var _ Gateway = (*Fake)(nil)

// NewFake creates a fake gateway that signs with serverKey.
func NewFake(serverKey, baseURL string) *Fake {
	if baseURL == "" {
		baseURL = "http://localhost:8080/pay"
	}
	return &Fake{serverKey: serverKey, baseURL: baseURL, txs: make(map[string]*fakeTx)}
}

func (f *Fake) CreateTransaction(_ context.Context, req TransactionRequest) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailCreate; err != nil {
		f.FailCreate = nil
		return nil, err
	}
	if _, ok := f.txs[req.OrderID]; ok {
		return nil, fmt.Errorf("fake gateway: order id %s already used", req.OrderID)
	}
	tx := &fakeTx{req: req, token: uuid.NewString(), status: TxPending}
	f.txs[req.OrderID] = tx
	return &Transaction{Token: tx.token, RedirectURL: f.baseURL + "/" + tx.token}, nil
}

func (f *Fake) Status(_ context.Context, orderID string) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[orderID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return f.notification(orderID, tx), nil
}

func (f *Fake) VerifyNotification(body []byte) (*Notification, error) {
	return verifySignature(body, f.serverKey)
}

// SetStatus moves a transaction to status.
func (f *Fake) SetStatus(orderID string, status TransactionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[orderID]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.status = status
	return nil
}

// Notify returns a signed notification for the transaction's current status.
func (f *Fake) Notify(orderID string) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[orderID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return f.notification(orderID, tx), nil
}

// Request returns the request a transaction was created with.
func (f *Fake) Request(orderID string) (TransactionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[orderID]
	if !ok {
		return TransactionRequest{}, false
	}
	return tx.req, true
}

func (f *Fake) notification(orderID string, tx *fakeTx) *Notification {
	code := "201"
	switch tx.status {
	case TxSettlement, TxCapture:
		code = "200"
	case TxDeny, TxCancel, TxExpire, TxFailure:
		code = "202"
	}
	gross := FormatAmount(tx.req.GrossAmount)
	return &Notification{
		OrderID:           orderID,
		TransactionID:     tx.token,
		TransactionStatus: tx.status,
		FraudStatus:       FraudAccept,
		StatusCode:        code,
		GrossAmount:       gross,
		PaymentType:       "bank_transfer",
		SignatureKey:      Signature(orderID, code, gross, f.serverKey),
	}
}
