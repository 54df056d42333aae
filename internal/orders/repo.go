package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo owns the order aggregate: the orders + order_items rows and
// every status transition. All reads and writes are owner-scoped.
type Repo struct{ DB *pgxpool.Pool }

// CreateInterested opens a new order in INTERESTED with one line per
// resolvable product id. Unresolvable ids are skipped (documented
// contract), but an input that resolves to zero lines is rejected.
func (r *Repo) CreateInterested(ctx context.Context, ownerID int64, details string, productIDs []int64) (*Aggregate, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: empty product id list", ErrValidation)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prices, err := productPrices(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}
	amount := AmountForProducts(prices, productIDs)

	var nLines int
	for _, id := range productIDs {
		if _, ok := prices[id]; ok {
			nLines++
		}
	}
	if nLines == 0 {
		return nil, fmt.Errorf("%w: no resolvable product ids", ErrValidation)
	}

	var o Order
	o.OwnerID = ownerID
	o.Details = details
	o.Status = StatusInterested
	o.Amount = amount
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(owner_id, details, status, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, ownerID, details, string(StatusInterested), amount).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, nLines)
	for _, pid := range productIDs {
		if _, ok := prices[pid]; !ok {
			continue // id tidak resolve -> skip, bukan error
		}
		var it OrderItem
		it.OrderID = o.ID
		it.ProductID = pid
		if err := tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id)
			VALUES ($1, $2) RETURNING id
		`, o.ID, pid).Scan(&it.ID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &Aggregate{Order: o, Items: items}, nil
}

// ListByOwner returns the caller's non-cancelled orders in the given
// statuses, newest first.
func (r *Repo) ListByOwner(ctx context.Context, ownerID int64, statuses []Status) ([]Order, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusInterested}
	}
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, owner_id, details, status, amount, created_at, updated_at
		FROM orders
		WHERE owner_id = $1 AND deleted_at IS NULL AND status = ANY($2)
		ORDER BY id DESC
	`, ownerID, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var status string
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Details, &status, &o.Amount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetAggregate loads one order with its lines. Cancelled orders are
// still readable (status shows CANCELLED); foreign orders are not.
func (r *Repo) GetAggregate(ctx context.Context, ownerID, orderID int64) (*Aggregate, error) {
	return loadAggregate(ctx, r.DB, ownerID, orderID)
}

// advance flips the status column iff the row still matches the
// expected current status. Every status write goes through here so
// the transition table stays the single source of truth; a pair the
// table forbids is a programming error, not a data state.
func advance(ctx context.Context, tx pgx.Tx, ownerID, orderID int64, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrUnprocessable, from, to)
	}
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $4, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL AND status = $3
	`, orderID, ownerID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so aggregate
// loads can run inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadAggregate(ctx context.Context, q querier, ownerID, orderID int64) (*Aggregate, error) {
	var o Order
	var status string
	err := q.QueryRow(ctx, `
		SELECT id, owner_id, details, status, amount, created_at, updated_at, deleted_at
		FROM orders WHERE id = $1 AND owner_id = $2
	`, orderID, ownerID).Scan(&o.ID, &o.OwnerID, &o.Details, &status, &o.Amount, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = statusOf(status, o.DeletedAt)

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, stock_item_id
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agg := &Aggregate{Order: o}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.StockItemID); err != nil {
			return nil, err
		}
		agg.Items = append(agg.Items, it)
	}
	return agg, rows.Err()
}

func productPrices(ctx context.Context, q querier, productIDs []int64) (map[int64]decimal.Decimal, error) {
	rows, err := q.Query(ctx, `SELECT id, price FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := map[int64]decimal.Decimal{}
	for rows.Next() {
		var id int64
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	return prices, rows.Err()
}
