package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nk-nexus/order-stock-api/internal/metrics"
	"github.com/nk-nexus/order-stock-api/internal/orders"
)

type PaymentService interface {
	RecordPayment(ctx context.Context, ownerID, orderID int64, amount decimal.Decimal, method string, paidAt time.Time) (*orders.Payment, *orders.Aggregate, error)
}

type PaymentsHandler struct {
	Svc      PaymentService
	Producer EventPublisher
	Log      *zap.Logger
	Service  string
}

type CreatePaymentReq struct {
	OrderID int64     `json:"order_id"`
	Amount  string    `json:"amount"` // decimal string, e.g. "25.00"
	Method  string    `json:"method"`
	Date    time.Time `json:"date"`
}

type CreatePaymentResp struct {
	Payment *orders.Payment   `json:"payment"`
	Order   *orders.Aggregate `json:"order"`
}

func (h *PaymentsHandler) Register(r *chi.Mux, authn func(http.Handler) http.Handler) {
	r.Route("/payments", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.createPayment)
	})
}

func (h *PaymentsHandler) createPayment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var req CreatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid amount"))
		return
	}
	if req.OrderID <= 0 {
		writeJSON(w, http.StatusBadRequest, errBody("bad order id"))
		return
	}
	paidAt := req.Date
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	payment, agg, err := h.Svc.RecordPayment(ctx, claims.OwnerID, req.OrderID, amount, req.Method, paidAt)
	if err != nil {
		metrics.RecordOrderOp("payment", "error")
		writeError(w, err)
		return
	}
	metrics.RecordOrderOp("payment", string(payment.Status))

	publishEvent(h.Producer, h.Service, r, orders.TopicPaymentRecorded, orders.EventPaymentRecorded, payment.OrderID, orders.PaymentRecordedPayload{
		OrderID:       payment.OrderID,
		OwnerID:       claims.OwnerID,
		PaymentID:     payment.ID,
		Amount:        payment.Amount.StringFixed(2),
		PaymentStatus: payment.Status,
		OrderStatus:   agg.Order.Status,
	})
	writeJSON(w, http.StatusCreated, CreatePaymentResp{Payment: payment, Order: agg})
}
