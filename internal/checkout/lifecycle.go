package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/metrics"
	"github.com/lakon-apparel/storefront/internal/payment"
)

// Transition sources.
const (
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
	SourceAdmin     = "admin"
)

// Transition moves o to status to. It reports false without error when o was
// no longer in its expected status (another writer won), which makes replays
// of the same notification harmless. Stock is taken when an order becomes
// paid and returned when a paid order is cancelled.
func (s *Service) Transition(ctx context.Context, o *order.Order, to order.Status, source string) (bool, error) {
	from := o.Status
	if from == to {
		return false, nil
	}
	if !order.CanTransition(from, to) {
		return false, svcerrors.Conflict(fmt.Sprintf("cannot move order from %s to %s", from, to)).
			WithDetails("allowed", order.NextStatuses(from))
	}

	now := s.now().UTC()
	changed, err := s.orders.TransitionOrder(ctx, o.ID, from, to, now)
	if err != nil {
		return false, svcerrors.Internal("failed to update order", err)
	}
	if !changed {
		return false, nil
	}

	o.Status = to
	o.UpdatedAt = now
	if to == order.StatusPaid {
		o.PaidAt = &now
	}

	switch {
	case to == order.StatusPaid:
		s.adjustStock(ctx, o, -1)
	case to == order.StatusCancelled && from.Paid():
		s.adjustStock(ctx, o, 1)
	}

	s.events.Publish(order.Event{Kind: order.EventStatusChanged, Order: o, From: from, Source: source, At: now})
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order":  o.Number,
		"from":   from,
		"to":     to,
		"source": source,
	}).Info("order status changed")

	if to != order.StatusExpired {
		s.send(ctx, o.Customer.Phone, s.composer.StatusMessage(o))
	}
	return true, nil
}

// adjustStock applies sign*quantity to every item's variant. Failures are
// logged; stock is floored at zero by the store.
func (s *Service) adjustStock(ctx context.Context, o *order.Order, sign int) {
	for _, it := range o.Items {
		if it.VariantID == "" {
			continue
		}
		left, err := s.stock.AdjustVariantStock(ctx, it.VariantID, sign*it.Quantity)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"order":   o.Number,
				"variant": it.VariantID,
			}).Error("failed to adjust stock")
			continue
		}
		s.log.WithContext(ctx).WithField("variant", it.VariantID).WithField("stock", left).Debug("stock adjusted")
	}
}

// UpdateStatus is the admin transition by order ID.
func (s *Service) UpdateStatus(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	if !to.Valid() {
		return nil, svcerrors.Validation("status", "unknown status "+string(to))
	}
	o, err := s.orders.GetOrder(ctx, id)
	if database.IsNotFound(err) {
		return nil, svcerrors.NotFound("order", id)
	}
	if err != nil {
		return nil, svcerrors.Internal("failed to load order", err)
	}
	if o.Status == to {
		return o, nil
	}
	changed, err := s.Transition(ctx, o, to, SourceAdmin)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, svcerrors.Conflict("order was updated concurrently, reload and retry")
	}
	return o, nil
}

// NotificationResult reports what a payment notification did.
type NotificationResult struct {
	OrderNumber string       `json:"order_number"`
	Status      order.Status `json:"status"`
	Applied     bool         `json:"applied"`
}

// HandleNotification verifies and applies a payment webhook body.
// Replays and out-of-order notifications are acknowledged without effect.
func (s *Service) HandleNotification(ctx context.Context, body []byte) (*NotificationResult, error) {
	n, err := s.gateway.VerifyNotification(body)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		s.log.LogSecurityEvent(ctx, "payment_signature_invalid", nil)
		return nil, svcerrors.Forbidden("invalid signature")
	case err != nil:
		return nil, svcerrors.BadRequest(err.Error())
	}

	o, err := s.orders.GetOrderByNumber(ctx, n.OrderID)
	if database.IsNotFound(err) {
		return nil, svcerrors.NotFound("order", n.OrderID)
	}
	if err != nil {
		return nil, svcerrors.Internal("failed to load order", err)
	}

	amount, err := n.Amount()
	if err != nil {
		return nil, svcerrors.BadRequest(err.Error())
	}
	if amount != o.Total {
		s.log.LogSecurityEvent(ctx, "payment_amount_mismatch", map[string]interface{}{
			"order":    o.Number,
			"expected": o.Total,
			"got":      amount,
		})
		return nil, svcerrors.BadRequest("gross amount does not match order total")
	}

	applied, err := s.apply(ctx, o, n, SourceWebhook)
	if err != nil {
		return nil, err
	}
	metrics.RecordPaymentNotification(string(n.OrderStatus()), applied)
	return &NotificationResult{OrderNumber: o.Number, Status: o.Status, Applied: applied}, nil
}

// apply moves o toward the status the gateway reported. Transitions the
// status machine does not allow are logged and skipped.
func (s *Service) apply(ctx context.Context, o *order.Order, n *payment.Notification, source string) (bool, error) {
	target := n.OrderStatus()
	if target == o.Status || target == order.StatusPendingPayment {
		return false, nil
	}
	if !order.CanTransition(o.Status, target) {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"order":  o.Number,
			"status": o.Status,
			"target": target,
		}).Warn("ignoring payment status that does not apply")
		return false, nil
	}
	return s.Transition(ctx, o, target, source)
}

const reconcileBatch = 200

// ReconcileResult counts what a reconciliation run did.
type ReconcileResult map[string]int

// Reconcile checks pending orders created before minAge ago against the
// gateway. Missed payments are applied; orders still unpaid past their
// expiry are marked expired.
func (s *Service) Reconcile(ctx context.Context, minAge time.Duration) (ReconcileResult, error) {
	start := s.now()
	pending, err := s.orders.ListPendingOrders(ctx, start.Add(-minAge).UTC(), reconcileBatch)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	res := ReconcileResult{}
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		o := &pending[i]
		res[s.reconcileOne(ctx, o, start)]++
	}
	metrics.RecordReconcile(res, s.now().Sub(start))
	return res, ctx.Err()
}

func (s *Service) reconcileOne(ctx context.Context, o *order.Order, now time.Time) string {
	n, err := s.gateway.Status(ctx, o.Number)
	switch {
	case errors.Is(err, payment.ErrTransactionNotFound):
		n = nil
	case err != nil:
		s.log.WithContext(ctx).WithError(err).WithField("order", o.Number).Warn("payment status lookup failed")
		return "error"
	}

	if n != nil {
		changed, err := s.apply(ctx, o, n, SourceReconcile)
		if err != nil {
			return "error"
		}
		if changed {
			return string(o.Status)
		}
	}

	if now.After(o.ExpiresAt) {
		changed, err := s.Transition(ctx, o, order.StatusExpired, SourceReconcile)
		if err != nil {
			return "error"
		}
		if changed {
			return string(order.StatusExpired)
		}
	}
	return "pending"
}
