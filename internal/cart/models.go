package cart

import (
	"time"

	"github.com/jatango/cart-engine/internal/catalog"
)

// LineItem is one product+variant+quantity entry in a user's cart.
//
// SalesEventID and ReserveExpiresAt are set together or not at all: a hold
// always belongs to a sales event, and an event item always has an expiry.
type LineItem struct {
	ID               string                  `json:"id"`
	UserID           string                  `json:"user_id"`
	ProductID        string                  `json:"product_id"`
	SellerID         string                  `json:"seller_id"`
	Selector         catalog.VariantSelector `json:"selector"`
	Quantity         int                     `json:"quantity"`
	AddedAt          time.Time               `json:"added_at"`
	SalesEventID     string                  `json:"sales_event_id,omitempty"`
	ReserveExpiresAt *time.Time              `json:"reserve_expires_at,omitempty"`

	// Denormalized from the product at load time.
	ProductName       string `json:"product_name,omitempty"`
	ImageURL          string `json:"image_url,omitempty"`
	BasePriceCents    int    `json:"base_price_cents"`
	ColorPriceCents   *int   `json:"color_price_cents,omitempty"`
	SizePriceCents    *int   `json:"size_price_cents,omitempty"`
	VariantPriceCents *int   `json:"variant_price_cents,omitempty"`
}

// Reserved reports whether the item holds an active sales-event reservation
// at the given instant.
func (it LineItem) Reserved(now time.Time) bool {
	return it.SalesEventID != "" && it.ReserveExpiresAt != nil && it.ReserveExpiresAt.After(now)
}

// Expired reports whether the item's reservation window has passed.
func (it LineItem) Expired(now time.Time) bool {
	return it.SalesEventID != "" && it.ReserveExpiresAt != nil && !it.ReserveExpiresAt.After(now)
}

// StoreCart groups a cart's line items by seller. Derived on every load,
// never stored on its own.
type StoreCart struct {
	SellerID   string     `json:"seller_id"`
	SellerName string     `json:"seller_name"`
	Items      []LineItem `json:"items"`
}

type Cart struct {
	UserID    string      `json:"user_id"`
	Stores    []StoreCart `json:"stores"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// StoreFor returns the store cart for one seller, if present.
func (c Cart) StoreFor(sellerID string) (StoreCart, bool) {
	for _, sc := range c.Stores {
		if sc.SellerID == sellerID {
			return sc, true
		}
	}
	return StoreCart{}, false
}

func (c Cart) AllItems() []LineItem {
	var out []LineItem
	for _, sc := range c.Stores {
		out = append(out, sc.Items...)
	}
	return out
}
