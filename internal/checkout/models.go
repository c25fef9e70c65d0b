package checkout

import (
	"time"

	"github.com/jatango/cart-engine/internal/cart"
	"github.com/jatango/cart-engine/internal/catalog"
)

// Intent statuses follow the checkout attempt state machine:
// created -> confirmed, or it dies as failed/abandoned.
const (
	IntentStatusCreated   = "created"
	IntentStatusConfirmed = "confirmed"
	IntentStatusFailed    = "failed"
	IntentStatusAbandoned = "abandoned"
)

// Intent is one in-progress payment handshake. The cart snapshot taken at
// intent creation rides along so confirmation materializes exactly what
// the buyer paid for, even if the cart changed mid-payment.
type Intent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AmountCents int       `json:"amount_cents"`
	Status      string    `json:"status"`
	Snapshot    cart.Cart `json:"snapshot"`
	CreatedAt   time.Time `json:"created_at"`
}

type ShippingInfo struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type OrderItem struct {
	ProductID  string                  `json:"product_id"`
	SellerID   string                  `json:"seller_id"`
	Selector   catalog.VariantSelector `json:"selector"`
	Qty        int                     `json:"qty"`
	PriceCents int                     `json:"price_cents"`
}

// Order is immutable once created; nothing in the cart engine mutates it
// afterwards.
type Order struct {
	ID         string       `json:"id"`
	IntentID   string       `json:"intent_id"`
	UserID     string       `json:"user_id"`
	Items      []OrderItem  `json:"items"`
	TotalCents int          `json:"total_cents"`
	Shipping   ShippingInfo `json:"shipping"`
	CreatedAt  time.Time    `json:"created_at"`
}
