package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	Details   string          `json:"details"`
	Status    Status          `json:"status"` // lihat status.go
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	StockItemID *int64 `json:"stock_item_id,omitempty"`
}

// StockItem is one serialized physical unit. deleted_at set berarti
// unit sudah terjual/ter-alokasi (disposed).
type StockItem struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"product_id"`
	Code      string     `json:"code"`
	Details   string     `json:"details"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidAt    time.Time       `json:"paid_at"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Aggregate is what every order operation returns: the order row plus
// its live lines (with bound stock unit ids once confirmed).
type Aggregate struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// statusOf derives the externally visible status. Cancellation is
// stored as deleted_at on the row, never as a hard delete.
func statusOf(raw string, deletedAt *time.Time) Status {
	if deletedAt != nil {
		return StatusCancelled
	}
	return Status(raw)
}
