package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Reconcile decides what a new payment does to an ORDERED order: once
// the cumulative sum (prior payments of any status plus the incoming
// one) reaches the order amount, the payment lands SUCCESSFUL and the
// order advances to PURCHASED. Overpayment behaves like exact payment.
func Reconcile(orderAmount, prior, incoming decimal.Decimal) (PaymentStatus, Status) {
	if prior.Add(incoming).GreaterThanOrEqual(orderAmount) {
		return PaymentSuccessful, StatusPurchased
	}
	return PaymentPending, StatusOrdered
}

// RecordPayment appends a payment to an ORDERED order and advances the
// order per Reconcile. Payments are immutable after insert; a PURCHASED
// or later order takes no more payments (reads as not found).
func (r *Repo) RecordPayment(ctx context.Context, ownerID, orderID int64, amount decimal.Decimal, method string, paidAt time.Time) (*Payment, *Aggregate, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderAmount decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT amount FROM orders
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL AND status = $3
		FOR UPDATE
	`, orderID, ownerID, string(StatusOrdered)).Scan(&orderAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var prior decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1
	`, orderID).Scan(&prior)
	if err != nil {
		return nil, nil, err
	}

	payStatus, orderStatus := Reconcile(orderAmount, prior, amount)
	if orderStatus != StatusOrdered {
		// row is locked above; a miss here means the guard predicate drifted
		ok, err := advance(ctx, tx, ownerID, orderID, StatusOrdered, orderStatus)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, ErrNotFound
		}
	}

	p := Payment{OrderID: orderID, Amount: amount, Method: method, PaidAt: paidAt, Status: payStatus}
	err = tx.QueryRow(ctx, `
		INSERT INTO payments(order_id, amount, method, paid_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, orderID, amount, method, paidAt, string(payStatus)).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	agg, err := loadAggregate(ctx, tx, ownerID, orderID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &p, agg, nil
}
