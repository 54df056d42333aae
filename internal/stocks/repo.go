// Package stocks manages the serialized stock item pool consumed by
// order allocation. Creation is privileged (staff only); availability
// is derived purely from deleted_at, which confirm sets and cancel
// clears.
package stocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nk-nexus/order-stock-api/internal/orders"
)

type ItemInput struct {
	ProductID int64  `json:"product_id"`
	Details   string `json:"details"`
}

type Repo struct{ DB *pgxpool.Pool }

// CreateItems inserts one serialized unit per input, each with a fresh
// uuid code. Inputs whose product id resolves to nothing are skipped
// and reported back, not treated as an error.
func (r *Repo) CreateItems(ctx context.Context, inputs []ItemInput) (created []orders.StockItem, skipped []int64, err error) {
	if len(inputs) == 0 {
		return nil, nil, orders.ErrValidation
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, in := range inputs {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)
		`, in.ProductID).Scan(&exists); err != nil {
			return nil, nil, err
		}
		if !exists {
			skipped = append(skipped, in.ProductID)
			continue
		}

		item := orders.StockItem{ProductID: in.ProductID, Code: uuid.NewString(), Details: in.Details}
		if err := tx.QueryRow(ctx, `
			INSERT INTO stock_items(product_id, code, details)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, in.ProductID, item.Code, in.Details).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, nil, err
		}
		created = append(created, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return created, skipped, nil
}

// Availability counts the units of a product still open to allocation.
func (r *Repo) Availability(ctx context.Context, productID int64) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_items
		WHERE product_id = $1 AND deleted_at IS NULL
	`, productID).Scan(&n)
	return n, err
}
