package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nk-nexus/order-stock-api/internal/metrics"
	"github.com/nk-nexus/order-stock-api/internal/orders"
	"github.com/nk-nexus/order-stock-api/internal/redisx"
)

// OrderService is the slice of *orders.Repo the handlers need; narrow
// interface keeps the handlers testable without a database.
type OrderService interface {
	CreateInterested(ctx context.Context, ownerID int64, details string, productIDs []int64) (*orders.Aggregate, error)
	ListByOwner(ctx context.Context, ownerID int64, statuses []orders.Status) ([]orders.Order, error)
	GetAggregate(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error)
	AddItems(ctx context.Context, ownerID, orderID int64, productIDs []int64) (*orders.Aggregate, error)
	RemoveItems(ctx context.Context, ownerID, orderID int64, orderItemIDs []int64) (*orders.Aggregate, error)
	Confirm(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error)
	Complete(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error)
	Cancel(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, []int64, error)
}

// StatusCache is the slice of *redis.Client the status read path
// needs; narrow so the cache-hit path is testable without a server.
type StatusCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type OrdersHandler struct {
	Svc      OrderService
	Producer EventPublisher
	Redis    StatusCache
	Log      *zap.Logger
	Service  string
}

type CreateOrderReq struct {
	Details    string  `json:"details"`
	ProductIDs []int64 `json:"product_ids"`
}

type AddItemsReq struct {
	ProductIDs []int64 `json:"product_ids"`
}

type RemoveItemsReq struct {
	OrderItemIDs []int64 `json:"order_item_ids"`
}

func (h *OrdersHandler) Register(r *chi.Mux, authn func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
		r.Post("/{id}/items", h.addItems)
		r.Delete("/{id}/items", h.removeItems)
		r.Patch("/{id}/confirm", h.confirmOrder)
		r.Patch("/{id}/complete", h.completeOrder)
		r.Patch("/{id}/cancel", h.cancelOrder)
	})
}

func orderIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad order id", orders.ErrValidation)
	}
	return id, nil
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	agg, err := h.Svc.CreateInterested(ctx, claims.OwnerID, req.Details, req.ProductIDs)
	if err != nil {
		metrics.RecordOrderOp("create", "error")
		writeError(w, err)
		return
	}
	metrics.RecordOrderOp("create", "ok")
	h.cacheStatus(ctx, agg.Order)

	publishEvent(h.Producer, h.Service, r, orders.TopicOrderCreated, orders.EventOrderCreated, agg.Order.ID, orders.OrderCreatedPayload{
		OrderID:    agg.Order.ID,
		OwnerID:    agg.Order.OwnerID,
		ProductIDs: req.ProductIDs,
		Amount:     agg.Order.Amount.StringFixed(2),
		Status:     agg.Order.Status,
	})

	writeJSON(w, http.StatusCreated, agg)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	statuses := orders.ParseStatusFilter(r.URL.Query().Get("status"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Svc.ListByOwner(ctx, claims.OwnerID, statuses)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	agg, err := h.Svc.GetAggregate(ctx, claims.OwnerID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// getOrderStatus serves the status-only read from the Redis cache
// first; DB is the fallback and the source of truth.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// key owner-scoped: hit milik owner lain tidak pernah kebaca
	key := fmt.Sprintf(redisx.KeyOrderStatus, claims.OwnerID, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	agg, err := h.Svc.GetAggregate(ctx, claims.OwnerID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, agg.Order)
	writeJSON(w, http.StatusOK, map[string]any{"status": agg.Order.Status})
}

func (h *OrdersHandler) addItems(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req AddItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	agg, err := h.Svc.AddItems(ctx, claims.OwnerID, orderID, req.ProductIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agg)
}

func (h *OrdersHandler) removeItems(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req RemoveItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	agg, err := h.Svc.RemoveItems(ctx, claims.OwnerID, orderID, req.OrderItemIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *OrdersHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	agg, err := h.Svc.Confirm(ctx, claims.OwnerID, orderID)
	if err != nil {
		var ise *orders.InsufficientStockError
		if errors.As(err, &ise) {
			metrics.RecordOrderOp("confirm", "insufficient_stock")
			publishEvent(h.Producer, h.Service, r, orders.TopicStockRejected, orders.EventStockRejected, orderID, orders.StockRejectedPayload{
				OrderID: orderID, Reason: "OUT_OF_STOCK", Details: ise.Details,
			})
		} else {
			metrics.RecordOrderOp("confirm", "error")
		}
		writeError(w, err)
		return
	}
	metrics.RecordOrderOp("confirm", "ok")
	h.cacheStatus(ctx, agg.Order)

	bindings := make([]orders.LineBinding, 0, len(agg.Items))
	for _, it := range agg.Items {
		if it.StockItemID != nil {
			bindings = append(bindings, orders.LineBinding{
				OrderItemID: it.ID, ProductID: it.ProductID, StockItemID: *it.StockItemID,
			})
		}
	}
	publishEvent(h.Producer, h.Service, r, orders.TopicOrderConfirmed, orders.EventOrderConfirmed, orderID, orders.OrderConfirmedPayload{
		OrderID: orderID, OwnerID: claims.OwnerID, Bindings: bindings,
	})

	writeJSON(w, http.StatusOK, agg)
}

func (h *OrdersHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	agg, err := h.Svc.Complete(ctx, claims.OwnerID, orderID)
	if err != nil {
		metrics.RecordOrderOp("complete", "error")
		writeError(w, err)
		return
	}
	metrics.RecordOrderOp("complete", "ok")
	h.cacheStatus(ctx, agg.Order)

	publishEvent(h.Producer, h.Service, r, orders.TopicOrderCompleted, orders.EventOrderCompleted, orderID, orders.OrderCompletedPayload{OrderID: orderID, OwnerID: claims.OwnerID})
	writeJSON(w, http.StatusOK, agg)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	agg, released, err := h.Svc.Cancel(ctx, claims.OwnerID, orderID)
	if err != nil {
		metrics.RecordOrderOp("cancel", "error")
		writeError(w, err)
		return
	}
	metrics.RecordOrderOp("cancel", "ok")
	h.cacheStatus(ctx, agg.Order)

	publishEvent(h.Producer, h.Service, r, orders.TopicOrderCancelled, orders.EventOrderCancelled, orderID, orders.OrderCancelledPayload{
		OrderID: orderID, OwnerID: claims.OwnerID, ReleasedUnits: released,
	})
	writeJSON(w, http.StatusOK, agg)
}

// cacheStatus is best-effort; the DB stays the source of truth.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.OwnerID, o.ID)
	body, _ := json.Marshal(map[string]any{"status": o.Status})
	if err := h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Debug("status cache set", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}
