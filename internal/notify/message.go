// Package notify builds WhatsApp order messages and delivers them.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lakon-apparel/storefront/internal/domain/order"
)

var idr = message.NewPrinter(language.Indonesian)

// Rupiah formats an amount as "Rp 1.250.000".
func Rupiah(amount int64) string {
	return idr.Sprintf("Rp %d", amount)
}

// ClickToChatURL builds a wa.me link that opens a chat with phone,
// prefilled with text. Non-digits are stripped from phone.
func ClickToChatURL(phone, text string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	u := "https://wa.me/" + digits.String()
	if text == "" {
		return u
	}
	// wa.me does not decode '+' as a space.
	return u + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// Composer renders order messages for one store.
type Composer struct {
	StoreName   string
	StoreNumber string
}

// OrderMessage is the summary a shopper sends to the store after checkout.
func (c Composer) OrderMessage(o *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s, saya sudah memesan:\n", c.StoreName)
	fmt.Fprintf(&b, "No. pesanan: %s\n\n", o.Number)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s (%s/%s) x%d = %s\n", it.Name, it.Size, it.Color, it.Quantity, Rupiah(it.LineTotal))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", Rupiah(o.Subtotal))
	if o.Discount > 0 {
		fmt.Fprintf(&b, "Diskon: -%s\n", Rupiah(o.Discount))
	}
	if o.Shipping > 0 {
		fmt.Fprintf(&b, "Ongkir: %s\n", Rupiah(o.Shipping))
	} else {
		b.WriteString("Ongkir: GRATIS\n")
	}
	fmt.Fprintf(&b, "Total: %s\n\n", Rupiah(o.Total))

	cust := o.Customer
	fmt.Fprintf(&b, "Nama: %s\nHP: %s\n", cust.Name, cust.Phone)
	fmt.Fprintf(&b, "Alamat: %s, %s %s\n", cust.Address, cust.City, cust.PostalCode)
	if cust.Notes != "" {
		fmt.Fprintf(&b, "Catatan: %s\n", cust.Notes)
	}
	if o.PaymentURL != "" {
		fmt.Fprintf(&b, "\nLink pembayaran: %s\n", o.PaymentURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

var statusText = map[order.Status]string{
	order.StatusPendingPayment: "menunggu pembayaran",
	order.StatusPaid:           "sudah dibayar",
	order.StatusProcessing:     "sedang diproses",
	order.StatusShipped:        "sudah dikirim",
	order.StatusCompleted:      "selesai",
	order.StatusCancelled:      "dibatalkan",
	order.StatusExpired:        "kedaluwarsa",
	order.StatusFailed:         "gagal dibayar",
}

// StatusMessage is the update the store sends a shopper when an order moves.
func (c Composer) StatusMessage(o *order.Order) string {
	text, ok := statusText[o.Status]
	if !ok {
		text = string(o.Status)
	}
	return fmt.Sprintf("Halo %s, pesanan %s di %s %s. Total: %s.",
		o.Customer.Name, o.Number, c.StoreName, text, Rupiah(o.Total))
}

// PaymentMessage thanks the shopper and repeats the payment link.
func (c Composer) PaymentMessage(o *order.Order) string {
	msg := fmt.Sprintf("Halo %s, terima kasih sudah berbelanja di %s. Pesanan %s sebesar %s menunggu pembayaran.",
		o.Customer.Name, c.StoreName, o.Number, Rupiah(o.Total))
	if o.PaymentURL != "" {
		msg += "\nBayar di sini: " + o.PaymentURL
	}
	return msg
}

// OrderLink is the click-to-chat link to the store with the order summary.
func (c Composer) OrderLink(o *order.Order) string {
	return ClickToChatURL(c.StoreNumber, c.OrderMessage(o))
}
