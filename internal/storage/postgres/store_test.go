package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/order"
	"github.com/lakon-apparel/storefront/internal/domain/product"
	"github.com/lakon-apparel/storefront/internal/domain/profile"
)

const (
	productID = "7b0c1f36-2d1e-4b8a-9f3c-5e6d7a8b9c01"
	variantID = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c02"
	orderID   = "3c2b1a0f-9e8d-4c7b-a6f5-e4d3c2b1a003"
	userID    = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c04"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := New(sqlx.NewDb(db, "postgres"))
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "slug", "name", "description", "category", "price", "compare_at_price", "active", "created_at", "updated_at"})
}

func TestGetProductBySlugLoadsChildren(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM products WHERE slug = \$1`).
		WithArgs("kaos-polos").
		WillReturnRows(productRows().AddRow(productID, "kaos-polos", "Kaos Polos", "", "atasan", int64(85000), int64(0), true, fixedNow, fixedNow))
	mock.ExpectQuery(`FROM product_variants WHERE product_id IN \(\$1\)`).
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "size", "color", "sku", "stock"}).
			AddRow(variantID, productID, "M", "Hitam", "KP-M-HTM", 4))
	mock.ExpectQuery(`FROM product_images WHERE product_id IN \(\$1\)`).
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "path", "url", "position", "created_at"}))

	p, err := store.GetProduct(context.Background(), "kaos-polos")
	require.NoError(t, err)
	assert.Equal(t, productID, p.ID)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, 4, p.Variants[0].Stock)
	assert.NotNil(t, p.Images)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM products WHERE id = \$1`).WithArgs(productID).WillReturnRows(productRows())

	_, err := store.GetProduct(context.Background(), productID)
	assert.True(t, database.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsAppliesFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products WHERE active = TRUE AND category = \$1 AND name ILIKE \$2 AND price <= \$3`).
		WithArgs("atasan", `%50\%%`, int64(100000)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`ORDER BY price ASC, id LIMIT \$4 OFFSET \$5`).
		WithArgs("atasan", `%50\%%`, int64(100000), 10, 10).
		WillReturnRows(productRows())

	products, total, err := store.ListProducts(context.Background(), product.Filter{
		Category: "atasan", Search: "50%", MaxPrice: 100000, Sort: product.SortPriceAsc, Page: 2, PerPage: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, int64(0), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductConflictRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO products`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := store.CreateProduct(context.Background(), &product.Product{Slug: "kaos-polos", Name: "Kaos Polos", Price: 85000})
	assert.True(t, database.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderInsertsItemsInTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	o := &order.Order{
		Number: "LKN-20261019-ABC123",
		UserID: userID,
		Status: order.StatusPendingPayment,
		Items: []order.Item{
			{ProductID: productID, VariantID: variantID, Name: "Kaos Polos", Size: "M", Color: "Hitam", Quantity: 2, UnitPrice: 85000, LineTotal: 170000},
			{ProductID: productID, VariantID: variantID, Name: "Kaos Polos", Size: "L", Color: "Hitam", Quantity: 1, UnitPrice: 85000, LineTotal: 85000},
		},
		Total: 275000,
	}
	require.NoError(t, store.CreateOrder(context.Background(), o))
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, fixedNow, o.CreatedAt)
	for _, it := range o.Items {
		assert.Equal(t, o.ID, it.OrderID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderRejectsEmpty(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.CreateOrder(context.Background(), &order.Order{})
	assert.True(t, database.IsInvalidInput(err))
}

func TestGetOrderByNumberAttachesItems(t *testing.T) {
	store, mock := newMockStore(t)

	cols := []string{"id", "number", "user_id", "status", "customer_name", "customer_phone", "customer_email",
		"address", "city", "postal_code", "notes", "subtotal", "discount", "shipping", "total",
		"payment_token", "payment_url", "paid_at", "expires_at", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM orders WHERE number = \$1`).
		WithArgs("LKN-20261019-ABC123").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			orderID, "LKN-20261019-ABC123", nil, "paid", "Sari", "6281234567890", "",
			"Jl. Melati 5", "Bandung", "40115", "", int64(170000), int64(0), int64(20000), int64(190000),
			"tok", "https://pay.test/tok", fixedNow, fixedNow.Add(24*time.Hour), fixedNow, fixedNow))
	mock.ExpectQuery(`FROM order_items WHERE order_id IN \(\$1\)`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "variant_id", "name", "size", "color", "quantity", "unit_price", "line_total"}).
			AddRow("c0ffee00-0000-4000-8000-000000000001", orderID, productID, variantID, "Kaos Polos", "M", "Hitam", 2, int64(85000), int64(170000)))

	o, err := store.GetOrderByNumber(context.Background(), "LKN-20261019-ABC123")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.Empty(t, o.UserID)
	require.NotNil(t, o.PaidAt)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(170000), o.Items[0].LineTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrderIsCompareAndSet(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE orders SET status = \$3, updated_at = \$4, paid_at = \$4 WHERE id = \$1 AND status = \$2`).
		WithArgs(orderID, "pending_payment", "paid", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE orders SET status = \$3, updated_at = \$4 WHERE id = \$1 AND status = \$2`).
		WithArgs(orderID, "pending_payment", "expired", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.TransitionOrder(context.Background(), orderID, order.StatusPendingPayment, order.StatusPaid, fixedNow)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.TransitionOrder(context.Background(), orderID, order.StatusPendingPayment, order.StatusExpired, fixedNow)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustVariantStock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT adjust_variant_stock\(\$1, \$2\)`).
		WithArgs(variantID, -2).
		WillReturnRows(sqlmock.NewRows([]string{"adjust_variant_stock"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT adjust_variant_stock`).
		WithArgs(variantID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"adjust_variant_stock"}).AddRow(nil))

	stock, err := store.AdjustVariantStock(context.Background(), variantID, -2)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	_, err = store.AdjustVariantStock(context.Background(), variantID, 1)
	assert.True(t, database.IsNotFound(err))

	_, err = store.AdjustVariantStock(context.Background(), "not-a-uuid", 1)
	assert.True(t, database.IsInvalidInput(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStats(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM orders GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("paid", int64(2)).
			AddRow("pending_payment", int64(1)))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total\), 0\) FROM orders WHERE status = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(380000)))

	stats, err := store.OrderStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ByStatus[order.StatusPaid])
	assert.Equal(t, int64(0), stats.ByStatus[order.StatusShipped])
	assert.Equal(t, int64(380000), stats.Revenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteVariantMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM product_variants WHERE id = \$1 AND product_id = \$2`).
		WithArgs(variantID, productID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteVariant(context.Background(), productID, variantID)
	assert.True(t, database.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProfileKeepsAdminFlag(t *testing.T) {
	store, mock := newMockStore(t)
	created := fixedNow.Add(-48 * time.Hour)
	mock.ExpectQuery(`INSERT INTO profiles .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(userID, "Sari Wulandari", "6281234567890", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"is_admin", "created_at"}).AddRow(true, created))

	p := &profile.Profile{ID: userID, FullName: "Sari Wulandari\x07", Phone: "6281234567890"}
	require.NoError(t, store.UpsertProfile(context.Background(), p))
	assert.True(t, p.IsAdmin)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapErrClassifiesDriverErrors(t *testing.T) {
	assert.True(t, database.IsConflict(wrapErr("op", &pq.Error{Code: "23505"})))
	assert.True(t, database.IsInvalidInput(wrapErr("op", &pq.Error{Code: "23514"})))
	assert.ErrorIs(t, wrapErr("op", sql.ErrConnDone), database.ErrDatabaseError)
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	m, err := NewMigrator(dsn)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	p := &product.Product{
		Slug: "integration-" + time.Now().Format("150405.000000"), Name: "Integration Tee", Price: 99000, Active: true,
		Variants: []product.Variant{{Size: "M", Color: "Hitam", Stock: 2}},
	}
	require.NoError(t, store.CreateProduct(ctx, p))
	defer store.DeleteProduct(ctx, p.ID)

	stock, err := store.AdjustVariantStock(ctx, p.Variants[0].ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}
