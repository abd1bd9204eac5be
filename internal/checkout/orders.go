package checkout

import (
	"context"
	"strings"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
)

// CustomerOrders lists a signed-in shopper's orders, newest first.
func (s *Service) CustomerOrders(ctx context.Context, userID string, page, perPage int) ([]order.Order, int64, error) {
	if userID == "" {
		return nil, 0, svcerrors.Unauthorized("")
	}
	items, total, err := s.orders.ListOrders(ctx, order.Filter{UserID: userID, Page: page, PerPage: perPage})
	if err != nil {
		return nil, 0, svcerrors.Internal("failed to list orders", err)
	}
	if items == nil {
		items = []order.Order{}
	}
	return items, total, nil
}

// Track returns an order to a guest who knows its number and the phone it
// was placed with. Any mismatch reads as not found.
func (s *Service) Track(ctx context.Context, number, phone string) (*order.Order, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if !strings.HasPrefix(number, order.NumberPrefix) {
		return nil, svcerrors.NotFound("order", number)
	}
	want, err := order.NormalizePhone(phone)
	if err != nil {
		return nil, svcerrors.Validation("phone", err.Error())
	}

	o, err := s.orders.GetOrderByNumber(ctx, number)
	if database.IsNotFound(err) {
		return nil, svcerrors.NotFound("order", number)
	}
	if err != nil {
		return nil, svcerrors.Internal("failed to load order", err)
	}
	if o.Customer.Phone != want {
		s.log.LogSecurityEvent(ctx, "order_track_phone_mismatch", map[string]interface{}{"order": number})
		return nil, svcerrors.NotFound("order", number)
	}
	return o, nil
}
