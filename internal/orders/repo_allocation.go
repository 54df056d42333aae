package orders

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Confirm moves an INTERESTED order to ORDERED and binds every line to
// a concrete available stock unit. Selection and disposal happen under
// row locks in one transaction: a unit claimed here is invisible to a
// racing confirm, so no unit is ever bound twice.
func (r *Repo) Confirm(ctx context.Context, ownerID, orderID int64) (*Aggregate, error) {
	var agg *Aggregate
	err := withTxRetry(ctx, r.DB, func(tx pgx.Tx) error {
		ok, err := advance(ctx, tx, ownerID, orderID, StatusInterested, StatusOrdered)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}

		rows, err := tx.Query(ctx, `
			SELECT id, order_id, product_id, stock_item_id
			FROM order_items WHERE order_id = $1 ORDER BY id
		`, orderID)
		if err != nil {
			return err
		}
		var items []OrderItem
		for rows.Next() {
			var it OrderItem
			if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.StockItemID); err != nil {
				rows.Close()
				return err
			}
			items = append(items, it)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrUnprocessable
		}

		_, productOrder := GroupDemand(items)
		// lock stock rows in ascending product id order utk hindari deadlock
		sorted := append([]int64(nil), productOrder...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		available := map[int64][]int64{}
		for _, pid := range sorted {
			unitRows, err := tx.Query(ctx, `
				SELECT id FROM stock_items
				WHERE product_id = $1 AND deleted_at IS NULL
				ORDER BY id
				FOR UPDATE
			`, pid)
			if err != nil {
				return err
			}
			for unitRows.Next() {
				var id int64
				if err := unitRows.Scan(&id); err != nil {
					unitRows.Close()
					return err
				}
				available[pid] = append(available[pid], id)
			}
			unitRows.Close()
			if err := unitRows.Err(); err != nil {
				return err
			}
		}
		bindings, shortage := PlanAllocation(items, available)
		if shortage != nil {
			shortage.OrderID = orderID
			return shortage // rollback via caller
		}

		unitIDs := make([]int64, 0, len(bindings))
		for _, b := range bindings {
			unitIDs = append(unitIDs, b.StockItemID)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE stock_items SET deleted_at = now(), updated_at = now()
			WHERE id = ANY($1)
		`, unitIDs); err != nil {
			return err
		}
		for _, b := range bindings {
			if _, err := tx.Exec(ctx, `
				UPDATE order_items SET stock_item_id = $2 WHERE id = $1
			`, b.OrderItemID, b.StockItemID); err != nil {
				return err
			}
		}

		agg, err = loadAggregate(ctx, tx, ownerID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Cancel marks an ORDERED or PURCHASED order cancelled and returns its
// bound units to the pool: stock rows get un-disposed, lines get their
// binding cleared, all in one transaction. Partial release never
// becomes visible.
func (r *Repo) Cancel(ctx context.Context, ownerID, orderID int64) (*Aggregate, []int64, error) {
	var agg *Aggregate
	var released []int64
	err := withTxRetry(ctx, r.DB, func(tx pgx.Tx) error {
		released = released[:0]
		ct, err := tx.Exec(ctx, `
			UPDATE orders SET deleted_at = now(), updated_at = now()
			WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL AND status = ANY($3)
		`, orderID, ownerID, []string{string(StatusOrdered), string(StatusPurchased)})
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}

		rows, err := tx.Query(ctx, `
			SELECT stock_item_id FROM order_items
			WHERE order_id = $1 AND stock_item_id IS NOT NULL
			ORDER BY stock_item_id
		`, orderID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			released = append(released, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(released) > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE stock_items SET deleted_at = NULL, updated_at = now()
				WHERE id = ANY($1)
			`, released); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE order_items SET stock_item_id = NULL WHERE order_id = $1
		`, orderID); err != nil {
			return err
		}

		agg, err = loadAggregate(ctx, tx, ownerID, orderID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return agg, released, nil
}

// Complete advances a PURCHASED order to COMPLETED. No allocation work
// remains: the units were disposed at confirm. Every line must already
// carry a binding; a missing one means the data was tampered with or a
// bug skipped confirm, not a business outcome.
func (r *Repo) Complete(ctx context.Context, ownerID, orderID int64) (*Aggregate, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := advance(ctx, tx, ownerID, orderID, StatusPurchased, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	var unbound int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_items
		WHERE order_id = $1 AND stock_item_id IS NULL
	`, orderID).Scan(&unbound)
	if err != nil {
		return nil, err
	}
	if unbound > 0 {
		return nil, ErrUnprocessable // rollback: status stays PURCHASED
	}

	agg, err := loadAggregate(ctx, tx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return agg, nil
}
