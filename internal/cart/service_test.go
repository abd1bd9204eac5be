package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	svcerrors "github.com/lakon-apparel/storefront/internal/errors"
)

func newTestService(t *testing.T) (*Service, *database.MockRepository, *product.Product) {
	t.Helper()
	repo := database.NewMockRepository()
	p := &product.Product{
		Name:     "Kaos Hitam",
		Slug:     "kaos-hitam",
		Category: "atasan",
		Price:    90000,
		Active:   true,
		Variants: []product.Variant{
			{Size: "M", Color: "Hitam", Stock: 5},
			{Size: "L", Color: "Hitam", Stock: 2},
		},
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	svc := NewService(NewMemoryRepository(0), repo, DefaultRules(), nil)
	return svc, repo, p
}

func TestService_AddItem(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	view, err := svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "m", Color: "hitam", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "M", view.Items[0].Size, "catalog spelling is stored")
	assert.Equal(t, int64(90000), view.Items[0].UnitPrice)
	assert.Equal(t, int64(180000), view.Items[0].LineTotal)
	assert.Equal(t, int64(200000), view.Totals.Total)
	assert.Empty(t, view.Notices)

	view, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: "kaos-hitam", Size: "L", Color: "Hitam", Quantity: 5})
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.Items[1].Quantity)
	require.Len(t, view.Notices, 1, "clamped lines are reported")
}

func TestService_AddItemRejects(t *testing.T) {
	svc, repo, p := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 0})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: "missing", Size: "M", Color: "Hitam", Quantity: 1})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))

	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "XXL", Color: "Hitam", Quantity: 1})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, err = repo.AdjustVariantStock(ctx, p.Variants[1].ID, -10)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "L", Color: "Hitam", Quantity: 1})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeOutOfStock))

	require.NoError(t, repo.SetProductActive(ctx, p.ID, false))
	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 1})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))
}

func TestService_GetRefreshesFromCatalog(t *testing.T) {
	svc, repo, p := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 4})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "L", Color: "Hitam", Quantity: 1})
	require.NoError(t, err)

	_, err = repo.AdjustVariantStock(ctx, p.Variants[0].ID, -3)
	require.NoError(t, err)
	_, err = repo.AdjustVariantStock(ctx, p.Variants[1].ID, -2)
	require.NoError(t, err)

	view, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Len(t, view.Notices, 2)

	again, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, again.Notices, "refresh is persisted")
}

func TestService_PrepareReportsPriceChange(t *testing.T) {
	svc, repo, p := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 1})
	require.NoError(t, err)

	current, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	current.Price = 150000
	require.NoError(t, repo.UpdateProduct(ctx, current))

	c, notices, err := svc.Prepare(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "price changed")
	line, ok := c.Find(ItemKey{ProductID: p.ID, Size: "M", Color: "Hitam"})
	require.True(t, ok)
	assert.Equal(t, int64(150000), line.UnitPrice)

	_, notices, err = svc.Prepare(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, notices, "new price is persisted once reported")
}

func TestService_CheckoutClearsOnlyOnSuccess(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 2})
	require.NoError(t, err)

	err = svc.Checkout(ctx, "c1", func(c *Cart, notices []Notice) error {
		assert.Equal(t, 2, c.Totals().Units)
		return errors.New("gateway down")
	})
	require.Error(t, err)
	view, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1, "failed checkout keeps the cart")

	require.NoError(t, svc.Checkout(ctx, "c1", func(*Cart, []Notice) error { return nil }))
	view, err = svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestService_GetDropsInactiveProducts(t *testing.T) {
	svc, repo, p := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, repo.SetProductActive(ctx, p.ID, false))

	view, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	require.Len(t, view.Notices, 1)
	assert.Contains(t, view.Notices[0].Message, "no longer available")
}

func TestService_UpdateRemoveClear(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()
	key := ItemKey{ProductID: p.ID, Size: "M", Color: "Hitam"}

	_, err := svc.UpdateItem(ctx, "c1", key, 1)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))

	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 1})
	require.NoError(t, err)

	view, err := svc.UpdateItem(ctx, "c1", key, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)

	view, err = svc.UpdateItem(ctx, "c1", key, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 1})
	require.NoError(t, err)
	view, err = svc.RemoveItem(ctx, "c1", key)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.AddItem(ctx, "c1", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "c1"))
	view, err = svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestService_Merge(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "guest", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 3})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user", AddItemRequest{ProductID: p.ID, Size: "M", Color: "Hitam", Quantity: 3})
	require.NoError(t, err)

	view, err := svc.Merge(ctx, "guest", "user")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity, "merged quantity is clamped")

	guest, err := svc.Get(ctx, "guest")
	require.NoError(t, err)
	assert.Empty(t, guest.Items)
}

type failingRepo struct{}

func (failingRepo) Load(context.Context, string) (Snapshot, error) {
	return Snapshot{}, errors.New("redis down")
}
func (failingRepo) Save(context.Context, Snapshot) error { return errors.New("redis down") }
func (failingRepo) Delete(context.Context, string) error { return errors.New("redis down") }

func TestService_StorageUnavailable(t *testing.T) {
	svc := NewService(failingRepo{}, database.NewMockRepository(), DefaultRules(), nil)

	_, err := svc.Get(context.Background(), "c1")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeUnavailable))
	assert.True(t, svcerrors.IsCode(svc.Clear(context.Background(), "c1"), svcerrors.CodeUnavailable))
}
