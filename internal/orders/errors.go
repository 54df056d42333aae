package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: malformed input, rejected before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers missing rows, foreign owners, and state-guard
	// misses alike: the predicate (id + owner + required status +
	// not cancelled) simply matched nothing.
	ErrNotFound = errors.New("order not found")

	// ErrUnprocessable: an internal consistency assumption broke,
	// e.g. completing an order whose lines lack bound units.
	ErrUnprocessable = errors.New("unprocessable order state")

	// ErrUnauthorized: caller role does not permit the operation.
	ErrUnauthorized = errors.New("unauthorized")
)

type ShortageDetail struct {
	ProductID int64 `json:"product_id"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

// InsufficientStockError: confirm demanded more units of a product
// than are available. A business outcome, never retried.
type InsufficientStockError struct {
	OrderID int64
	Details []ShortageDetail
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for order %d (%d products short)", e.OrderID, len(e.Details))
}

func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
