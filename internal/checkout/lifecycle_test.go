package checkout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/domain/order"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/payment"
)

func TestHandleNotification_PaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "c1", 3, 1)
	o := f.checkout(t, "c1").Order
	ctx := context.Background()

	body := f.notificationBody(t, o.Number, payment.TxSettlement)

	res, err := f.svc.HandleNotification(ctx, body)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, order.StatusPaid, res.Status)
	assert.Equal(t, 7, f.stock(t, "M"))
	assert.Equal(t, 9, f.stock(t, "L"))

	stored, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaidAt)

	res, err = f.svc.HandleNotification(ctx, body)
	require.NoError(t, err)
	assert.False(t, res.Applied, "replay has no effect")
	assert.Equal(t, 7, f.stock(t, "M"), "stock taken once")

	late := f.notificationBody(t, o.Number, payment.TxExpire)
	res, err = f.svc.HandleNotification(ctx, late)
	require.NoError(t, err)
	assert.False(t, res.Applied, "paid orders do not expire")
	assert.Equal(t, order.StatusPaid, res.Status)
}

func TestHandleNotification_PartialRefundKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "c1", 2, 0)
	o := f.checkout(t, "c1").Order
	ctx := context.Background()

	_, err := f.svc.HandleNotification(ctx, f.notificationBody(t, o.Number, payment.TxSettlement))
	require.NoError(t, err)
	assert.Equal(t, 8, f.stock(t, "M"))

	res, err := f.svc.HandleNotification(ctx, f.notificationBody(t, o.Number, payment.TxPartialRefund))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, order.StatusPaid, res.Status)
	assert.Equal(t, 8, f.stock(t, "M"), "goods stay sold")
}

func TestHandleNotification_DeniedCapture(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "c1", 1, 0)
	o := f.checkout(t, "c1").Order
	ctx := context.Background()

	denied := payment.Notification{
		OrderID: o.Number, TransactionStatus: payment.TxCapture, FraudStatus: payment.FraudDeny,
		StatusCode: "200", GrossAmount: "110000.00",
	}
	denied.SignatureKey = payment.Signature(denied.OrderID, "200", "110000.00", "server-key")
	body, err := json.Marshal(denied)
	require.NoError(t, err)

	res, err := f.svc.HandleNotification(ctx, body)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, order.StatusFailed, res.Status)
	assert.Equal(t, 10, f.stock(t, "M"), "no stock taken")
}

func TestHandleNotification_Failures(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "c1", 1, 0)
	o := f.checkout(t, "c1").Order
	ctx := context.Background()

	forged := payment.Notification{
		OrderID: o.Number, TransactionStatus: payment.TxSettlement, StatusCode: "200",
		GrossAmount: "110000.00", SignatureKey: "deadbeef",
	}
	body, _ := json.Marshal(forged)
	_, err := f.svc.HandleNotification(ctx, body)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeForbidden))

	_, err = f.svc.HandleNotification(ctx, []byte(`{`))
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeBadRequest))

	wrongAmount := payment.Notification{
		OrderID: o.Number, TransactionStatus: payment.TxSettlement, StatusCode: "200", GrossAmount: "1.00",
	}
	wrongAmount.SignatureKey = payment.Signature(wrongAmount.OrderID, "200", "1.00", "server-key")
	body, _ = json.Marshal(wrongAmount)
	_, err = f.svc.HandleNotification(ctx, body)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeBadRequest))

	unknown := payment.Notification{
		OrderID: "LKN-19990101-000000", TransactionStatus: payment.TxSettlement, StatusCode: "200", GrossAmount: "1.00",
	}
	unknown.SignatureKey = payment.Signature(unknown.OrderID, "200", "1.00", "server-key")
	body, _ = json.Marshal(unknown)
	_, err = f.svc.HandleNotification(ctx, body)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "c1", 2, 0)
	o := f.checkout(t, "c1").Order
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, o.ID, order.StatusShipped)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeConflict))

	_, err = f.svc.UpdateStatus(ctx, o.ID, "teleported")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, err = f.svc.UpdateStatus(ctx, "missing", order.StatusPaid)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))

	updated, err := f.svc.UpdateStatus(ctx, o.ID, order.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, updated.Status)
	assert.Equal(t, 8, f.stock(t, "M"))

	updated, err = f.svc.UpdateStatus(ctx, o.ID, order.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, updated.Status)

	updated, err = f.svc.UpdateStatus(ctx, o.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, updated.Status)
	assert.Equal(t, 10, f.stock(t, "M"), "cancelling a paid order restocks")

	kinds := 0
	for _, e := range f.events.events {
		if e.Kind == order.EventStatusChanged {
			kinds++
		}
	}
	assert.Equal(t, 3, kinds)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fillCart(t, "paid", 1, 0)
	paid := f.checkout(t, "paid").Order
	require.NoError(t, f.gateway.SetStatus(paid.Number, payment.TxSettlement))

	f.fillCart(t, "stale", 1, 0)
	stale := f.checkout(t, "stale").Order

	f.now = f.now.Add(2 * time.Hour)
	f.fillCart(t, "fresh", 1, 0)
	fresh := f.checkout(t, "fresh").Order

	// Past the first two orders' expiry, still inside the third's.
	f.now = f.now.Add(23 * time.Hour)

	res, err := f.svc.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res[string(order.StatusPaid)])
	assert.Equal(t, 1, res[string(order.StatusExpired)])
	assert.Equal(t, 1, res["pending"])

	for id, want := range map[string]order.Status{
		paid.ID:  order.StatusPaid,
		stale.ID: order.StatusExpired,
		fresh.ID: order.StatusPendingPayment,
	} {
		o, err := f.repo.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, o.Status)
	}

	res, err = f.svc.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{"pending": 1}, res)
}
