package stock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jatango/cart-engine/internal/catalog"
	"github.com/jatango/cart-engine/internal/clock"
)

// Products is the slice of the catalog the oracle needs.
type Products interface {
	Get(ctx context.Context, productID string) (catalog.Product, error)
}

// Oracle answers availability as max(0, raw - reservedByOthers), where
// reservedByOthers aggregates other users' unexpired sales-event holds.
// The answer is eventually consistent: a hint for the UX gate, never a
// lock. True scarcity is enforced by the conditional decrement when an
// order is confirmed.
type Oracle struct {
	DB       *pgxpool.Pool
	Products Products
	Clock    clock.Clock
}

func (o *Oracle) AvailableStock(ctx context.Context, userID, productID string, sel catalog.VariantSelector) (int, error) {
	p, err := o.Products.Get(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("oracle product: %w", err)
	}
	raw, scope := p.StockFor(sel)

	now := o.Clock.Now()
	query := `SELECT COALESCE(SUM(quantity), 0) FROM cart_items
		WHERE product_id=$1 AND user_id<>$2
		AND sales_event_id IS NOT NULL AND reserve_expires_at > $3`
	args := []any{productID, userID, now}
	// option-level stock only counts holds on the overriding axis; a
	// broader filter would miss holds carrying other axis ids
	switch scope {
	case catalog.ScopeVariant:
		query += ` AND variant_id=$4`
		args = append(args, sel.VariantID)
	case catalog.ScopeColor:
		query += ` AND color_id=$4`
		args = append(args, sel.ColorID)
	case catalog.ScopeSize:
		query += ` AND size_id=$4`
		args = append(args, sel.SizeID)
	}

	var reserved int
	if err := o.DB.QueryRow(ctx, query, args...).Scan(&reserved); err != nil {
		return 0, fmt.Errorf("oracle reserved: %w", err)
	}

	avail := raw - reserved
	if avail < 0 {
		avail = 0
	}
	return avail, nil
}
