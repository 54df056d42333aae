package orders

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventOrderConfirmed  = "OrderConfirmed"
	EventStockRejected   = "StockRejected"
	EventPaymentRecorded = "PaymentRecorded"
	EventOrderCompleted  = "OrderCompleted"
	EventOrderCancelled  = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type LineBinding struct {
	OrderItemID int64 `json:"order_item_id"`
	ProductID   int64 `json:"product_id"`
	StockItemID int64 `json:"stock_item_id"`
}

type OrderCreatedPayload struct {
	OrderID    int64   `json:"order_id"`
	OwnerID    int64   `json:"owner_id"`
	ProductIDs []int64 `json:"product_ids"`
	Amount     string  `json:"amount"` // decimal string, e.g. "25.00"
	Status     Status  `json:"status"`
}

type OrderConfirmedPayload struct {
	OrderID  int64         `json:"order_id"`
	OwnerID  int64         `json:"owner_id"`
	Bindings []LineBinding `json:"bindings"`
}

type StockRejectedPayload struct {
	OrderID int64            `json:"order_id"`
	Reason  string           `json:"reason"` // e.g., OUT_OF_STOCK
	Details []ShortageDetail `json:"details,omitempty"`
}

type PaymentRecordedPayload struct {
	OrderID       int64         `json:"order_id"`
	OwnerID       int64         `json:"owner_id"`
	PaymentID     int64         `json:"payment_id"`
	Amount        string        `json:"amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   Status        `json:"order_status"`
}

type OrderCompletedPayload struct {
	OrderID int64 `json:"order_id"`
	OwnerID int64 `json:"owner_id"`
}

type OrderCancelledPayload struct {
	OrderID       int64   `json:"order_id"`
	OwnerID       int64   `json:"owner_id"`
	ReleasedUnits []int64 `json:"released_units,omitempty"`
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
