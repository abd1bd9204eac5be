package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/domain/order"
)

func TestFake_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := NewFake("fake-key", "")

	tx, err := f.CreateTransaction(ctx, TransactionRequest{OrderID: "LKN-1", GrossAmount: 150000})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.Token)
	assert.Contains(t, tx.RedirectURL, tx.Token)

	_, err = f.CreateTransaction(ctx, TransactionRequest{OrderID: "LKN-1", GrossAmount: 150000})
	assert.Error(t, err)

	st, err := f.Status(ctx, "LKN-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingPayment, st.OrderStatus())

	require.NoError(t, f.SetStatus("LKN-1", TxSettlement))
	n, err := f.Notify("LKN-1")
	require.NoError(t, err)
	assert.Equal(t, "150000.00", n.GrossAmount)

	body, err := json.Marshal(n)
	require.NoError(t, err)
	verified, err := f.VerifyNotification(body)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, verified.OrderStatus())

	_, err = f.Status(ctx, "LKN-2")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.ErrorIs(t, f.SetStatus("LKN-2", TxSettlement), ErrTransactionNotFound)

	req, ok := f.Request("LKN-1")
	require.True(t, ok)
	assert.Equal(t, int64(150000), req.GrossAmount)
}

func TestFake_FailCreate(t *testing.T) {
	f := NewFake("k", "")
	f.FailCreate = errors.New("gateway down")
	_, err := f.CreateTransaction(context.Background(), TransactionRequest{OrderID: "LKN-1", GrossAmount: 1})
	assert.Error(t, err)

	_, err = f.CreateTransaction(context.Background(), TransactionRequest{OrderID: "LKN-1", GrossAmount: 1})
	assert.NoError(t, err)
}
