package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jatango/cart-engine/internal/catalog"
)

// PgRepo persists line items in Postgres. Rows are snake_case; the scan
// helpers below are the only place that shape is known.
type PgRepo struct{ DB *pgxpool.Pool }

const itemCols = `id, user_id, product_id, seller_id, color_id, size_id, variant_id,
	quantity, added_at, sales_event_id, reserve_expires_at`

func (r *PgRepo) ListItems(ctx context.Context, userID string) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+itemCols+` FROM cart_items WHERE user_id=$1 ORDER BY added_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PgRepo) GetItem(ctx context.Context, userID, itemID string) (*LineItem, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+itemCols+` FROM cart_items WHERE user_id=$1 AND id=$2`, userID, itemID)
	it, err := scanItem(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return &it, nil
}

func (r *PgRepo) FindMatch(ctx context.Context, userID, productID, colorID, sizeID string) (*LineItem, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+itemCols+` FROM cart_items
		WHERE user_id=$1 AND product_id=$2 AND color_id=$3 AND size_id=$4`,
		userID, productID, colorID, sizeID)
	it, err := scanItem(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find cart item: %w", err)
	}
	return &it, nil
}

// Upsert writes by the natural key so a retried add never duplicates a row.
func (r *PgRepo) Upsert(ctx context.Context, it LineItem) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, user_id, product_id, seller_id, color_id, size_id, variant_id,
			quantity, added_at, sales_event_id, reserve_expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11)
		ON CONFLICT (user_id, product_id, color_id, size_id) DO UPDATE SET
			variant_id = EXCLUDED.variant_id,
			quantity = EXCLUDED.quantity,
			sales_event_id = EXCLUDED.sales_event_id,
			reserve_expires_at = EXCLUDED.reserve_expires_at`,
		it.ID, it.UserID, it.ProductID, it.SellerID,
		it.Selector.ColorID, it.Selector.SizeID, it.Selector.VariantID,
		it.Quantity, it.AddedAt, it.SalesEventID, it.ReserveExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *PgRepo) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE cart_items SET quantity=$3 WHERE user_id=$1 AND id=$2`, userID, itemID, qty)
	if err != nil {
		return false, fmt.Errorf("update quantity: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PgRepo) Delete(ctx context.Context, userID, itemID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND id=$2`, userID, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (r *PgRepo) DeleteBySeller(ctx context.Context, userID, sellerID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND seller_id=$2`, userID, sellerID)
	if err != nil {
		return fmt.Errorf("delete by seller: %w", err)
	}
	return nil
}

func (r *PgRepo) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

func (r *PgRepo) DeleteExpired(ctx context.Context, userID string, now time.Time) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx, `DELETE FROM cart_items
		WHERE user_id=$1 AND reserve_expires_at IS NOT NULL AND reserve_expires_at <= $2
		RETURNING `+itemCols, userID, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// DeleteAllExpired is the sweeper's cross-user variant.
func (r *PgRepo) DeleteAllExpired(ctx context.Context, now time.Time) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx, `DELETE FROM cart_items
		WHERE reserve_expires_at IS NOT NULL AND reserve_expires_at <= $1
		RETURNING `+itemCols, now)
	if err != nil {
		return nil, fmt.Errorf("delete all expired: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]LineItem, error) {
	var out []LineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (LineItem, error) {
	var it LineItem
	var eventID *string
	var sel catalog.VariantSelector
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.SellerID,
		&sel.ColorID, &sel.SizeID, &sel.VariantID,
		&it.Quantity, &it.AddedAt, &eventID, &it.ReserveExpiresAt)
	if err != nil {
		return LineItem{}, err
	}
	it.Selector = sel
	if eventID != nil {
		it.SalesEventID = *eventID
	}
	return it, nil
}
