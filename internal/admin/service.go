// Package admin implements the back-office: catalog management, order
// management and the dashboard.
package admin

import (
	"context"
	"errors"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
	"github.com/lakon-apparel/storefront/internal/logging"
	"github.com/lakon-apparel/storefront/internal/media"
)

// DefaultLowStockThreshold flags variants with this many units or fewer.
const DefaultLowStockThreshold = 3

// StatusUpdater applies admin order transitions.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, to order.Status) (*order.Order, error)
}

// Config holds admin dependencies.
type Config struct {
	Products          database.ProductStore
	Orders            database.OrderStore
	Media             media.Store
	Lifecycle         StatusUpdater
	LowStockThreshold int
	Logger            *logging.Logger
}

// Service is the admin back-office.
type Service struct {
	products  database.ProductStore
	orders    database.OrderStore
	media     media.Store
	lifecycle StatusUpdater
	lowStock  int
	log       *logging.Logger
}

// New creates the admin service.
func New(cfg Config) (*Service, error) {
	if cfg.Products == nil || cfg.Orders == nil || cfg.Media == nil || cfg.Lifecycle == nil {
		return nil, errors.New("admin: products, orders, media and lifecycle are required")
	}
	s := &Service{
		products:  cfg.Products,
		orders:    cfg.Orders,
		media:     cfg.Media,
		lifecycle: cfg.Lifecycle,
		lowStock:  cfg.LowStockThreshold,
		log:       cfg.Logger,
	}
	if s.lowStock <= 0 {
		s.lowStock = DefaultLowStockThreshold
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	return s, nil
}

// storeError maps repository errors onto service errors.
func (s *Service) storeError(ctx context.Context, op, resource, id string, err error) error {
	switch {
	case database.IsNotFound(err):
		return svcerrors.NotFound(resource, id)
	case database.IsConflict(err):
		return svcerrors.Conflict(err.Error())
	case database.IsInvalidInput(err):
		return svcerrors.BadRequest(err.Error())
	}
	s.log.WithContext(ctx).WithError(err).WithField("op", op).Error("admin store operation failed")
	return svcerrors.Internal("failed to "+op, err)
}
