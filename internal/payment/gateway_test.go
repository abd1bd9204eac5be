package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/domain/order"
)

func signedBody(t *testing.T, n Notification, serverKey string) []byte {
	t.Helper()
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	body, err := json.Marshal(n)
	require.NoError(t, err)
	return body
}

func TestNotification_OrderStatus(t *testing.T) {
	tests := []struct {
		status TransactionStatus
		fraud  string
		want   order.Status
	}{
		{TxSettlement, "", order.StatusPaid},
		{TxCapture, "accept", order.StatusPaid},
		{TxCapture, "", order.StatusPaid},
		{TxCapture, "challenge", order.StatusPendingPayment},
		{TxCapture, "deny", order.StatusFailed},
		{TxPending, "", order.StatusPendingPayment},
		{TxDeny, "", order.StatusFailed},
		{TxFailure, "", order.StatusFailed},
		{TxCancel, "", order.StatusCancelled},
		{TxRefund, "", order.StatusCancelled},
		{TxPartialRefund, "", order.StatusPendingPayment},
		{TxExpire, "", order.StatusExpired},
		{"authorize", "", order.StatusPendingPayment},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+tt.fraud, func(t *testing.T) {
			n := Notification{TransactionStatus: tt.status, FraudStatus: tt.fraud}
			assert.Equal(t, tt.want, n.OrderStatus())
		})
	}
}

func TestNotification_Amount(t *testing.T) {
	n := Notification{GrossAmount: "486000.00"}
	amount, err := n.Amount()
	require.NoError(t, err)
	assert.Equal(t, int64(486000), amount)

	for _, bad := range []string{"abc", "486000.50", "-1.00", ""} {
		n.GrossAmount = bad
		_, err = n.Amount()
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
	assert.Equal(t, "486000.00", FormatAmount(486000))
}

func TestSignature(t *testing.T) {
	sig := Signature("LKN-20260301-ABC123", "200", "486000.00", "SB-Mid-server-xyz")
	assert.Len(t, sig, 128)
	assert.Equal(t, sig, Signature("LKN-20260301-ABC123", "200", "486000.00", "SB-Mid-server-xyz"))
	assert.NotEqual(t, sig, Signature("LKN-20260301-ABC123", "200", "486001.00", "SB-Mid-server-xyz"))
}

func TestVerifySignature(t *testing.T) {
	n := Notification{
		OrderID:           "LKN-20260301-ABC123",
		TransactionStatus: TxSettlement,
		StatusCode:        "200",
		GrossAmount:       "486000.00",
	}

	got, err := verifySignature(signedBody(t, n, "server-key"), "server-key")
	require.NoError(t, err)
	assert.Equal(t, "LKN-20260301-ABC123", got.OrderID)
	assert.Equal(t, order.StatusPaid, got.OrderStatus())

	_, err = verifySignature(signedBody(t, n, "other-key"), "server-key")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = verifySignature([]byte(`{"order_id":"x"}`), "server-key")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = verifySignature([]byte(`not json`), "server-key")
	assert.ErrorIs(t, err, ErrMalformed)
}
