package notify

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/domain/order"
)

func sampleOrder() *order.Order {
	return &order.Order{
		Number: "LKN-20260301-ABC123",
		Status: order.StatusPendingPayment,
		Customer: order.Customer{
			Name:       "Sari",
			Phone:      "6281234567890",
			Address:    "Jl. Melati 5",
			City:       "Bandung",
			PostalCode: "40115",
			Notes:      "tolong dibungkus kado",
		},
		Items: []order.Item{
			{Name: "Kaos Hitam", Size: "M", Color: "Hitam", Quantity: 3, UnitPrice: 90000, LineTotal: 270000},
			{Name: "Kemeja Batik", Size: "L", Color: "Coklat", Quantity: 3, UnitPrice: 250000, LineTotal: 750000},
		},
		Subtotal:   1020000,
		Discount:   102000,
		Total:      918000,
		PaymentURL: "https://pay.example/tok",
	}
}

func TestRupiah(t *testing.T) {
	assert.Equal(t, "Rp 0", Rupiah(0))
	assert.Equal(t, "Rp 90.000", Rupiah(90000))
	assert.Equal(t, "Rp 1.250.000", Rupiah(1250000))
}

func TestClickToChatURL(t *testing.T) {
	assert.Equal(t, "https://wa.me/6281234567890", ClickToChatURL("+62 812-3456-7890", ""))

	link := ClickToChatURL("6281234567890", "Halo kak & tim")
	assert.True(t, strings.HasPrefix(link, "https://wa.me/6281234567890?text="))
	assert.NotContains(t, link, "+")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Halo kak & tim", u.Query().Get("text"))
}

func TestComposer_OrderMessage(t *testing.T) {
	c := Composer{StoreName: "Lakon Apparel", StoreNumber: "6281100000000"}
	msg := c.OrderMessage(sampleOrder())

	assert.Contains(t, msg, "LKN-20260301-ABC123")
	assert.Contains(t, msg, "- Kaos Hitam (M/Hitam) x3 = Rp 270.000")
	assert.Contains(t, msg, "Diskon: -Rp 102.000")
	assert.Contains(t, msg, "Ongkir: GRATIS")
	assert.Contains(t, msg, "Total: Rp 918.000")
	assert.Contains(t, msg, "Catatan: tolong dibungkus kado")
	assert.Contains(t, msg, "https://pay.example/tok")

	link := c.OrderLink(sampleOrder())
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/6281100000000", u.Path)
	assert.Equal(t, msg, u.Query().Get("text"))
}

func TestComposer_StatusMessage(t *testing.T) {
	c := Composer{StoreName: "Lakon Apparel"}
	o := sampleOrder()
	o.Status = order.StatusShipped
	assert.Equal(t, "Halo Sari, pesanan LKN-20260301-ABC123 di Lakon Apparel sudah dikirim. Total: Rp 918.000.", c.StatusMessage(o))
}

func TestComposer_PaymentMessage(t *testing.T) {
	c := Composer{StoreName: "Lakon Apparel"}
	msg := c.PaymentMessage(sampleOrder())
	assert.Contains(t, msg, "Rp 918.000")
	assert.Contains(t, msg, "Bayar di sini: https://pay.example/tok")
}
