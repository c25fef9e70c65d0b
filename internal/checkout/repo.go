package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jatango/cart-engine/internal/catalog"
)

type PgRepo struct{ DB *pgxpool.Pool }

func (r *PgRepo) SaveIntent(ctx context.Context, in Intent) error {
	snapshot, err := json.Marshal(in.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO checkout_intents(id, user_id, amount_cents, status, snapshot, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING`,
		in.ID, in.UserID, in.AmountCents, in.Status, snapshot, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("save intent: %w", err)
	}
	return nil
}

func (r *PgRepo) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	var in Intent
	var snapshot []byte
	err := r.DB.QueryRow(ctx, `SELECT id, user_id, amount_cents, status, snapshot, created_at
		FROM checkout_intents WHERE id=$1`, intentID).
		Scan(&in.ID, &in.UserID, &in.AmountCents, &in.Status, &snapshot, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get intent: %w", err)
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &in.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &in, nil
}

func (r *PgRepo) MarkIntent(ctx context.Context, intentID, status string) error {
	_, err := r.DB.Exec(ctx, `UPDATE checkout_intents SET status=$2 WHERE id=$1`, intentID, status)
	if err != nil {
		return fmt.Errorf("mark intent: %w", err)
	}
	return nil
}

func (r *PgRepo) GetOrderByIntent(ctx context.Context, intentID string) (*Order, error) {
	var o Order
	var shipping []byte
	err := r.DB.QueryRow(ctx, `SELECT id, intent_id, user_id, total_cents, shipping, created_at
		FROM orders WHERE intent_id=$1`, intentID).
		Scan(&o.ID, &o.IntentID, &o.UserID, &o.TotalCents, &shipping, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by intent: %w", err)
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
			return nil, fmt.Errorf("decode shipping: %w", err)
		}
	}
	items, err := r.listItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// CreateOrder writes the order atomically: stock is decremented with a
// conditional update per item, the order and its lines are inserted, the
// purchased cart rows (and with them the reservations) are deleted, and
// the intent is marked confirmed. A unique constraint on intent_id keeps
// concurrent confirms down to exactly one order.
func (r *PgRepo) CreateOrder(ctx context.Context, o Order) (Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range o.Items {
		ct, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id=$1 AND stock >= $2`,
			it.ProductID, it.Qty)
		if err != nil {
			return Order{}, false, fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() != 1 {
			return Order{}, false, fmt.Errorf("%w: product %s", ErrStockConflict, it.ProductID)
		}
	}

	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return Order{}, false, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, intent_id, user_id, total_cents, shipping, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.IntentID, o.UserID, o.TotalCents, shipping, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// a concurrent confirm won; hand back its order
			existing, rerr := r.GetOrderByIntent(ctx, o.IntentID)
			if rerr != nil {
				return Order{}, false, rerr
			}
			if existing != nil {
				return *existing, false, nil
			}
		}
		return Order{}, false, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, seller_id, color_id, size_id, variant_id, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			o.ID, it.ProductID, it.SellerID,
			it.Selector.ColorID, it.Selector.SizeID, it.Selector.VariantID,
			it.Qty, it.PriceCents)
		if err != nil {
			return Order{}, false, fmt.Errorf("insert order item: %w", err)
		}
	}

	// Reservation ownership transfers to the order: the paid cart rows go.
	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `DELETE FROM cart_items
			WHERE user_id=$1 AND product_id=$2 AND color_id=$3 AND size_id=$4`,
			o.UserID, it.ProductID, it.Selector.ColorID, it.Selector.SizeID)
		if err != nil {
			return Order{}, false, fmt.Errorf("commit reservation: %w", err)
		}
	}

	if _, err = tx.Exec(ctx, `UPDATE checkout_intents SET status=$2 WHERE id=$1`,
		o.IntentID, IntentStatusConfirmed); err != nil {
		return Order{}, false, fmt.Errorf("confirm intent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (r *PgRepo) listItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `SELECT product_id, seller_id, color_id, size_id, variant_id, qty, price_cents
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		var sel catalog.VariantSelector
		if err := rows.Scan(&it.ProductID, &it.SellerID, &sel.ColorID, &sel.SizeID, &sel.VariantID,
			&it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		it.Selector = sel
		out = append(out, it)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
