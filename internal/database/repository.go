// Package database provides the storefront repositories: Supabase (PostgREST)
// and an in-memory implementation for tests and local development.
package database

import (
	"context"
	"time"

	"github.com/lakon-apparel/storefront/infra/supabase"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	"github.com/lakon-apparel/storefront/internal/domain/profile"
)

// ProductStore persists the catalog.
type ProductStore interface {
	ListProducts(ctx context.Context, f product.Filter) ([]product.Product, int64, error)
	GetProduct(ctx context.Context, idOrSlug string) (*product.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, p *product.Product) error
	UpdateProduct(ctx context.Context, p *product.Product) error
	SetProductActive(ctx context.Context, id string, active bool) error
	DeleteProduct(ctx context.Context, id string) error

	UpsertVariant(ctx context.Context, v *product.Variant) error
	DeleteVariant(ctx context.Context, productID, variantID string) error
	AdjustVariantStock(ctx context.Context, variantID string, delta int) (int, error)
	ListLowStock(ctx context.Context, threshold int) ([]product.LowStock, error)

	AddImage(ctx context.Context, img *product.Image) error
	GetImage(ctx context.Context, id string) (*product.Image, error)
	DeleteImage(ctx context.Context, id string) error
}

// OrderStore persists orders and their items.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	ListOrders(ctx context.Context, f order.Filter) ([]order.Order, int64, error)
	// TransitionOrder moves an order from one status to another only if it
	// is still in from. It reports whether a row changed.
	TransitionOrder(ctx context.Context, id string, from, to order.Status, at time.Time) (bool, error)
	SetOrderPayment(ctx context.Context, id, token, redirectURL string) error
	ListPendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]order.Order, error)
	OrderStats(ctx context.Context) (*order.Stats, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	UpsertProfile(ctx context.Context, p *profile.Profile) error
}

// RepositoryInterface is the full persistence surface used by the service.
type RepositoryInterface interface {
	ProductStore
	OrderStore
	ProfileStore
	Ping(ctx context.Context) error
}

// Repository implements RepositoryInterface over Supabase PostgREST.
type Repository struct {
	client *supabase.Client
	db     *supabase.DatabaseClient
	now    func() time.Time
}

// NewRepository creates a Supabase-backed repository.
func NewRepository(client *supabase.Client) *Repository {
	return &Repository{client: client, db: client.Database(), now: time.Now}
}

var _ RepositoryInterface = (*Repository)(nil)

// Ping checks PostgREST reachability.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.db.From("products").Select("id").Limit(1).Execute(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

func (r *Repository) from(table string) *supabase.QueryBuilder {
	return r.db.From(table)
}
