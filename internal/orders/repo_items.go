package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// lockInterested locks the order row for the duration of an item
// mutation. Only INTERESTED, non-cancelled, owner-matching orders
// qualify; everything else reads as not found.
func lockInterested(ctx context.Context, tx pgx.Tx, ownerID, orderID int64) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT amount FROM orders
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL AND status = $3
		FOR UPDATE
	`, orderID, ownerID, string(StatusInterested)).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	return amount, err
}

// AddItems appends one line per resolvable product id and bumps the
// order amount by the matching prices. Unresolvable ids are skipped.
func (r *Repo) AddItems(ctx context.Context, ownerID, orderID int64, productIDs []int64) (*Aggregate, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: empty product id list", ErrValidation)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	amount, err := lockInterested(ctx, tx, ownerID, orderID)
	if err != nil {
		return nil, err
	}

	prices, err := productPrices(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, pid := range productIDs {
		if _, ok := prices[pid]; !ok {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id) VALUES ($1, $2)
		`, orderID, pid); err != nil {
			return nil, err
		}
	}

	amount = amount.Add(AmountForProducts(prices, productIDs))
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET amount = $2, updated_at = now() WHERE id = $1
	`, orderID, amount); err != nil {
		return nil, err
	}

	agg, err := loadAggregate(ctx, tx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	return agg, tx.Commit(ctx)
}

// RemoveItems deletes the matching lines and subtracts their product
// prices from the order amount. Ids that match no current line are a
// no-op, not an error.
func (r *Repo) RemoveItems(ctx context.Context, ownerID, orderID int64, orderItemIDs []int64) (*Aggregate, error) {
	if len(orderItemIDs) == 0 {
		return nil, fmt.Errorf("%w: empty order item id list", ErrValidation)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	amount, err := lockInterested(ctx, tx, ownerID, orderID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT p.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 AND oi.id = ANY($2)
	`, orderID, orderItemIDs)
	if err != nil {
		return nil, err
	}
	var removed []decimal.Decimal
	for rows.Next() {
		var price decimal.Decimal
		if err := rows.Scan(&price); err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, price)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM order_items WHERE order_id = $1 AND id = ANY($2)
	`, orderID, orderItemIDs); err != nil {
		return nil, err
	}

	amount = AmountAfterRemoval(amount, removed)
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET amount = $2, updated_at = now() WHERE id = $1
	`, orderID, amount); err != nil {
		return nil, err
	}

	agg, err := loadAggregate(ctx, tx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	return agg, tx.Commit(ctx)
}
